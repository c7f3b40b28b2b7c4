package util

import (
	"fmt"
	"io/ioutil"
	"net"
	"os"
	"testing"
)

// AvailableAddress returns a loopback address whose port was free at the
// time of the call, scanning upwards from startPort.
func AvailableAddress(startPort uint16) string {
	for port := startPort; ; port++ {
		addr := fmt.Sprintf("127.0.0.1:%d", port)
		lis, err := net.Listen("tcp", addr)
		if err == nil {
			lis.Close()
			return addr
		}
	}
}

// TempDir creates a directory removed when the test ends.
func TempDir(t *testing.T, prefix string) string {
	dir, err := ioutil.TempDir("", prefix)
	if err != nil {
		t.Fatalf("failed to create temp dir: %s", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	return dir
}
