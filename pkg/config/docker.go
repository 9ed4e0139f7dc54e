package config

import (
	"os"
	"sync"
)

// dockerHostAlias is where Docker Desktop and recent Docker Engine versions
// expose the host machine's network from inside a container.
const dockerHostAlias = "host.docker.internal"

// inContainer reports whether the process runs inside a Docker container.
// Swapped out in tests.
var inContainer = sync.OnceValue(func() bool {
	// Docker creates /.dockerenv at the filesystem root of every container.
	_, err := os.Stat("/.dockerenv")
	return err == nil
})

// ResolveHostForDocker rewrites loopback database hosts to the Docker host
// alias when the engine itself runs in a container, so a config written for
// local development keeps pointing at the host's PostgreSQL under docker run.
// Non-loopback hosts pass through unchanged.
func ResolveHostForDocker(host string) string {
	if host != "localhost" && host != "127.0.0.1" {
		return host
	}
	if !inContainer() {
		return host
	}
	return dockerHostAlias
}
