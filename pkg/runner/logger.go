package runner

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"

	"github.com/bahdotsh/wrkflw/pkg/common"
)

var colors = []int{
	31, // red
	32, // green
	33, // yellow
	34, // blue
	35, // magenta
	36, // cyan
}

var nextColor int

// WithJobLogger attaches a job-scoped logger to the context. Every
// line a job emits carries the job name prefix so interleaved
// parallel output stays readable.
func WithJobLogger(ctx context.Context, jobID string, jobName string, config *Config, matrix map[string]interface{}) context.Context {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)
	logger.SetLevel(logrus.GetLevel())

	if config.JSONLogger {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		nextColor = (nextColor + 1) % len(colors)
		logger.SetFormatter(&jobLogFormatter{
			color:   colors[nextColor],
			jobName: jobName,
		})
	}

	fields := logrus.Fields{
		"job":   jobName,
		"jobID": jobID,
	}
	if len(matrix) > 0 {
		fields["matrix"] = matrix
	}

	return common.WithLogger(ctx, logger.WithFields(fields))
}

type jobLogFormatter struct {
	color   int
	jobName string
}

func (f *jobLogFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	var sb strings.Builder

	useColor := isatty.IsTerminal(os.Stdout.Fd())
	name := fmt.Sprintf("[%s] ", f.jobName)
	if useColor {
		name = fmt.Sprintf("\x1b[%dm%s\x1b[0m", f.color, name)
	}
	sb.WriteString(name)

	if entry.Data["raw_output"] == true {
		sb.WriteString("| ")
	} else if entry.Level <= logrus.WarnLevel {
		sb.WriteString(fmt.Sprintf("%s ", strings.ToUpper(entry.Level.String())))
	}

	sb.WriteString(strings.TrimSuffix(entry.Message, "\n"))
	sb.WriteString("\n")
	return []byte(sb.String()), nil
}
