package container

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
)

// CommonSocketLocations is checked in order when DOCKER_HOST is unset
var CommonSocketLocations = []string{
	"/var/run/docker.sock",
	"/run/podman/podman.sock",
	"$HOME/.colima/docker.sock",
	"$XDG_RUNTIME_DIR/docker.sock",
	"$XDG_RUNTIME_DIR/podman/podman.sock",
	`\\.\pipe\docker_engine`,
	"$HOME/.docker/run/docker.sock",
}

// returns socket URI or false if not found any
func socketLocation() (string, bool) {
	if dockerHost, exists := os.LookupEnv("DOCKER_HOST"); exists {
		return dockerHost, true
	}

	for _, p := range CommonSocketLocations {
		if _, err := os.Lstat(os.ExpandEnv(p)); err == nil {
			if strings.HasPrefix(p, `\\.\`) {
				return "npipe://" + filepath.ToSlash(os.ExpandEnv(p)), true
			}
			return "unix://" + filepath.ToSlash(os.ExpandEnv(p)), true
		}
	}

	return "", false
}

// isDockerHostURI reports whether daemonPath is a scheme-qualified
// daemon URI rather than a bare file path.
func isDockerHostURI(daemonPath string) bool {
	if protoIndex := strings.Index(daemonPath, "://"); protoIndex != -1 {
		scheme := daemonPath[:protoIndex]
		if strings.IndexFunc(scheme, func(r rune) bool {
			return (r < 'a' || r > 'z') && (r < 'A' || r > 'Z')
		}) == -1 {
			return true
		}
	}
	return false
}

// DaemonSocketMountPath maps a daemon URI to the path that can be
// mounted into a container; bare paths are returned unchanged.
func DaemonSocketMountPath(daemonPath string) string {
	if protoIndex := strings.Index(daemonPath, "://"); protoIndex != -1 {
		scheme := daemonPath[:protoIndex]
		if strings.EqualFold(scheme, "npipe") {
			// a linux container cannot mount a windows pipe; use the
			// default socket path of the VM
			return "/var/run/docker.sock"
		} else if strings.EqualFold(scheme, "unix") {
			return daemonPath[protoIndex+3:]
		} else if isDockerHostURI(daemonPath) {
			// unknown protocol, use default
			return "/var/run/docker.sock"
		}
	}
	return daemonPath
}

// SocketAndHost holds the socket mounted into job containers and the
// host the client talks to. They may differ.
type SocketAndHost struct {
	Socket string
	Host   string
}

// GetSocketAndHost resolves the daemon socket to mount and the daemon
// host to connect to. containerSocket is the user-supplied mount value,
// "-" meaning do not mount, "" meaning pick a sane default.
func GetSocketAndHost(containerSocket string) (SocketAndHost, error) {
	log.Debugf("Handling container host and socket")
	socketHost := SocketAndHost{Socket: containerSocket, Host: ""}

	dockerHost, hasDockerHost := os.LookupEnv("DOCKER_HOST")
	if hasDockerHost {
		socketHost.Host = dockerHost
	}

	if !hasDockerHost && socketHost.Socket != "" && !isDockerHostURI(socketHost.Socket) {
		// no host to talk to and the socket value is a bare path
		defaultSocket, _ := socketLocation()
		socketHost.Host = defaultSocket
		if socketHost.Host == "" {
			return socketHost, fmt.Errorf("daemon Docker Engine socket not found and no DOCKER_HOST set")
		}
		return socketHost, nil
	}

	// default the mounted socket to the host when omitted
	if socketHost.Socket == "" && hasDockerHost {
		log.Debugf("Defaulting container socket to DOCKER_HOST")
		socketHost.Socket = dockerHost
	}
	if socketHost.Socket == "" {
		socket, _ := socketLocation()
		log.Debugf("Defaulting container socket to default '%s'", socket)
		socketHost.Socket = socket
	}

	if hasDockerHost {
		if !isDockerHostURI(socketHost.Socket) && socketHost.Socket != "-" {
			log.Warnf("DOCKER_HOST is set, but socket is invalid '%s'", socketHost.Socket)
		}
		return socketHost, nil
	}

	if isDockerHostURI(socketHost.Socket) {
		socketHost.Host = socketHost.Socket
		return socketHost, nil
	}

	if socketHost.Socket == "-" {
		socket, found := socketLocation()
		if !found {
			return socketHost, fmt.Errorf("no DOCKER_HOST and no daemon socket found")
		}
		socketHost.Host = socket
		return socketHost, nil
	}

	return socketHost, fmt.Errorf("no DOCKER_HOST and an invalid container socket '%s'", socketHost.Socket)
}
