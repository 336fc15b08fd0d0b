package config

import (
	"os"
	"sync"
)

// Docker containers all carry the /.dockerenv marker; the stat is cached
// after the first call.
var inDocker = sync.OnceValue(func() bool {
	_, err := os.Stat("/.dockerenv")
	return err == nil
})

// IsRunningInDocker reports whether the engine runs inside a container.
func IsRunningInDocker() bool {
	return inDocker()
}

// ResolveHostForDocker rewrites loopback hosts to host.docker.internal
// when the engine runs in a container, so database readers configured with
// "localhost" still reach services on the host machine. Any other host
// passes through unchanged.
func ResolveHostForDocker(host string) string {
	if host != "localhost" && host != "127.0.0.1" {
		return host
	}
	if !IsRunningInDocker() {
		return host
	}
	return "host.docker.internal"
}
