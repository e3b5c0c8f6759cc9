package image

import (
	"fmt"
	"strings"

	"plinth/types"
)

// DockerfileName is the name the rendered Dockerfile gets inside the build
// context. A file with the same name at the root of the app source is
// ignored in favor of the rendered one.
const DockerfileName = "Dockerfile"

// Render produces the Dockerfile for an app. The emitted steps encode the
// fixed startup sequence: dependencies are installed once at build time with
// artifact caching disabled, the bind contract is declared as image defaults,
// exactly one port is exposed, and the entrypoint runs as the container's
// foreground process so its exit code becomes the container's.
func Render(app types.App, installer []string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "FROM %s\n\n", app.BaseImage)
	fmt.Fprintf(&b, "WORKDIR /app\n\n")
	fmt.Fprintf(&b, "COPY %s ./%s\n", app.Manifest, app.Manifest)
	fmt.Fprintf(&b, "RUN %s install --no-cache-dir -r %s\n\n", strings.Join(installer, " "), app.Manifest)
	fmt.Fprintf(&b, "COPY . .\n\n")
	fmt.Fprintf(&b, "ENV %s=%s\n", types.EnvBindAddress, app.BindAddress)
	fmt.Fprintf(&b, "ENV %s=%d\n\n", types.EnvBindPort, app.BindPort)
	fmt.Fprintf(&b, "EXPOSE %d\n\n", app.BindPort)
	fmt.Fprintf(&b, "CMD [%s]\n", joinJSON(app.Entrypoint))

	return b.String()
}

// joinJSON renders argv in the exec-form list Dockerfiles use, so the
// entrypoint runs without a shell wrapper and receives signals directly.
func joinJSON(argv []string) string {
	quoted := make([]string, len(argv))
	for i, a := range argv {
		quoted[i] = fmt.Sprintf("%q", a)
	}
	return strings.Join(quoted, ", ")
}
