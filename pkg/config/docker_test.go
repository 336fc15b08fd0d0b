package config

import (
	"testing"
)

func TestResolveHostForDocker_RemoteHostsUnchanged(t *testing.T) {
	// Non-loopback hosts are never rewritten regardless of where the
	// engine runs.
	hosts := []string{"db.example.com", "192.168.1.100", "host.docker.internal"}
	for _, host := range hosts {
		if got := ResolveHostForDocker(host); got != host {
			t.Errorf("ResolveHostForDocker(%q) = %q, want unchanged", host, got)
		}
	}
}

func TestResolveHostForDocker_LoopbackVariants(t *testing.T) {
	// Loopback is rewritten only inside a container; the test has to
	// accept either outcome depending on the environment it runs in.
	for _, host := range []string{"localhost", "127.0.0.1"} {
		got := ResolveHostForDocker(host)
		if IsRunningInDocker() {
			if got != "host.docker.internal" {
				t.Errorf("ResolveHostForDocker(%q) in container = %q, want host.docker.internal", host, got)
			}
		} else if got != host {
			t.Errorf("ResolveHostForDocker(%q) outside container = %q, want unchanged", host, got)
		}
	}
}
