package model

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/bahdotsh/wrkflw/pkg/common"
)

// matrixDefinition is the decoded form of a strategy matrix: the axes
// in declaration order plus the include and exclude row lists.
type matrixDefinition struct {
	axisNames []string
	axes      map[string][]interface{}
	includes  []map[string]interface{}
	excludes  []map[string]interface{}
}

func decodeMatrix(node yaml.Node) (*matrixDefinition, error) {
	if node.Kind != yaml.MappingNode {
		return nil, nil
	}
	def := &matrixDefinition{
		axes: map[string][]interface{}{},
	}
	// mapping nodes hold alternating key/value children
	for i := 0; i+1 < len(node.Content); i += 2 {
		keyNode := node.Content[i]
		valNode := node.Content[i+1]
		switch keyNode.Value {
		case "include":
			if err := valNode.Decode(&def.includes); err != nil {
				return nil, fmt.Errorf("matrix include is not a list of mappings: %w", err)
			}
		case "exclude":
			if err := valNode.Decode(&def.excludes); err != nil {
				return nil, fmt.Errorf("matrix exclude is not a list of mappings: %w", err)
			}
		default:
			var values []interface{}
			if err := valNode.Decode(&values); err != nil {
				return nil, fmt.Errorf("matrix axis %q is not a list: %w", keyNode.Value, err)
			}
			def.axisNames = append(def.axisNames, keyNode.Value)
			def.axes[keyNode.Value] = values
		}
	}
	return def, nil
}

// GetMatrixes expands the job's matrix strategy into the ordered list
// of rows used to clone the job. Rows are the cross product of the
// declared axes in declaration order, minus rows matching an exclude
// entry, with include rows merged into every matching row or
// appended at the end. A job without a matrix yields one empty row.
func (j *Job) GetMatrixes() ([]map[string]interface{}, error) {
	matrixes := make([]map[string]interface{}, 0)
	if j.Strategy == nil {
		return append(matrixes, make(map[string]interface{})), nil
	}
	j.Strategy.FailFast = j.Strategy.GetFailFast()
	j.Strategy.MaxParallel = j.Strategy.GetMaxParallel()

	def, err := decodeMatrix(j.Strategy.RawMatrix)
	if err != nil {
		return nil, err
	}
	if def == nil {
		return append(matrixes, make(map[string]interface{})), nil
	}

	for _, e := range def.excludes {
		for k := range e {
			if _, ok := def.axes[k]; !ok {
				// exclude may only reference declared axes; include may
				// introduce new columns
				return nil, fmt.Errorf("matrix exclude key %q does not match any key within the matrix", k)
			}
		}
	}

	product := common.CartesianProductOrdered(def.axisNames, def.axes)
MATRIX:
	for _, row := range product {
		for _, exclude := range def.excludes {
			if commonKeysMatch(row, exclude) {
				continue MATRIX
			}
		}
		matrixes = append(matrixes, row)
	}

	for _, include := range def.includes {
		merged := false
		for _, row := range matrixes {
			if declaredAxesMatch(row, include, def.axes) {
				for k, v := range include {
					if _, declared := def.axes[k]; !declared {
						row[k] = v
					}
				}
				merged = true
			}
		}
		if !merged {
			matrixes = append(matrixes, include)
		}
	}

	return matrixes, nil
}

// commonKeysMatch reports whether every key present in b equals the
// corresponding value of a.
func commonKeysMatch(a map[string]interface{}, b map[string]interface{}) bool {
	for bKey, bVal := range b {
		if aVal, ok := a[bKey]; ok && !reflect.DeepEqual(aVal, bVal) {
			return false
		}
	}
	return true
}

// declaredAxesMatch reports whether the include row agrees with the
// product row on every declared axis it mentions.
func declaredAxesMatch(row, include map[string]interface{}, axes map[string][]interface{}) bool {
	mentions := false
	for k, v := range include {
		if _, declared := axes[k]; !declared {
			continue
		}
		mentions = true
		if !reflect.DeepEqual(row[k], v) {
			return false
		}
	}
	return mentions
}

// MatrixSuffix renders a matrix row for an expanded job id, keys in
// lexical order: `(os=linux, ver=2)`.
func MatrixSuffix(matrix map[string]interface{}) string {
	if len(matrix) == 0 {
		return ""
	}
	keys := make([]string, 0, len(matrix))
	for k := range matrix {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, matrix[k]))
	}
	return fmt.Sprintf("(%s)", strings.Join(parts, ", "))
}
