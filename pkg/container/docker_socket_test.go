package container

import (
	"os"
	"testing"

	log "github.com/sirupsen/logrus"
	assert "github.com/stretchr/testify/assert"
)

func init() {
	log.SetLevel(log.DebugLevel)
}

var originalCommonSocketLocations = CommonSocketLocations

func TestGetSocketAndHostWithSocket(t *testing.T) {
	// Arrange
	CommonSocketLocations = originalCommonSocketLocations
	dockerHost := "unix:///my/docker/host.sock"
	socketURI := "/path/to/my.socket"
	os.Setenv("DOCKER_HOST", dockerHost)

	// Act
	ret, err := GetSocketAndHost(socketURI)

	// Assert
	assert.NoError(t, err)
	assert.Equal(t, SocketAndHost{socketURI, dockerHost}, ret)
}

func TestGetSocketAndHostNoSocket(t *testing.T) {
	// Arrange
	dockerHost := "unix:///my/docker/host.sock"
	os.Setenv("DOCKER_HOST", dockerHost)

	// Act
	ret, err := GetSocketAndHost("")

	// Assert
	assert.NoError(t, err)
	assert.Equal(t, SocketAndHost{dockerHost, dockerHost}, ret)
}

func TestGetSocketAndHostDontMount(t *testing.T) {
	// Arrange
	CommonSocketLocations = originalCommonSocketLocations
	dockerHost := "unix:///my/docker/host.sock"
	os.Setenv("DOCKER_HOST", dockerHost)

	// Act
	ret, err := GetSocketAndHost("-")

	// Assert
	assert.NoError(t, err)
	assert.Equal(t, SocketAndHost{"-", dockerHost}, ret)
}

func TestGetSocketAndHostNoHostNoSocket(t *testing.T) {
	// Arrange
	mySocketFile, tmpErr := os.CreateTemp("", "wrkflw-*.sock")
	assert.NoError(t, tmpErr)
	mySocket := mySocketFile.Name()
	unixSocket := "unix://" + mySocket
	defer os.RemoveAll(mySocket)
	os.Unsetenv("DOCKER_HOST")

	CommonSocketLocations = []string{mySocket}
	defaultSocket, found := socketLocation()

	// Act
	ret, err := GetSocketAndHost("")

	// Assert
	assert.Equal(t, unixSocket, defaultSocket, "Expected default socket to match common socket location")
	assert.Equal(t, true, found, "Expected default socket to be found")
	assert.NoError(t, err, "Expected no error from GetSocketAndHost")
	assert.Equal(t, SocketAndHost{unixSocket, unixSocket}, ret, "Expected to match default socket location")
}

func TestGetSocketAndHostNoHostInvalidSocket(t *testing.T) {
	// Arrange
	os.Unsetenv("DOCKER_HOST")
	mySocket := "/my/socket/path.sock"
	CommonSocketLocations = []string{"/unusual", "/socket", "/location"}
	defaultSocket, found := socketLocation()

	// Act
	ret, err := GetSocketAndHost(mySocket)

	// Assert
	assert.Equal(t, false, found, "Expected no default socket to be found")
	assert.Error(t, err, "Expected an error in invalid state")
	assert.Equal(t, SocketAndHost{mySocket, defaultSocket}, ret, "Expected to match default socket location")
}

func TestGetSocketAndHostOnlySocketValidURI(t *testing.T) {
	// Arrange
	socketURI := "unix:///path/to/my.socket"
	CommonSocketLocations = []string{"/unusual", "/location"}
	os.Unsetenv("DOCKER_HOST")

	// Act
	ret, err := GetSocketAndHost(socketURI)

	// Assert
	assert.NoError(t, err)
	assert.Equal(t, socketURI, ret.Socket, "Expect socket to be the supplied URI")
	assert.Equal(t, socketURI, ret.Host, "Expect host to default to the supplied URI")
}

func TestDaemonSocketMountPath(t *testing.T) {
	assert.Equal(t, "/var/run/docker.sock", DaemonSocketMountPath("unix:///var/run/docker.sock"))
	assert.Equal(t, "/my/sock", DaemonSocketMountPath("unix:///my/sock"))
	assert.Equal(t, "/var/run/docker.sock", DaemonSocketMountPath("npipe:////./pipe/docker_engine"))
	assert.Equal(t, "/var/run/docker.sock", DaemonSocketMountPath("tcp://1.2.3.4:2375"))
	assert.Equal(t, "/bare/path.sock", DaemonSocketMountPath("/bare/path.sock"))
}

func TestIsDockerHostURI(t *testing.T) {
	assert.True(t, isDockerHostURI("unix:///var/run/docker.sock"))
	assert.True(t, isDockerHostURI("tcp://127.0.0.1:2375"))
	assert.True(t, isDockerHostURI("npipe:////./pipe/docker_engine"))
	assert.False(t, isDockerHostURI("/var/run/docker.sock"))
	assert.False(t, isDockerHostURI("a+b://x"))
}
