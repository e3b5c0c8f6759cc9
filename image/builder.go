package image

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	buildtypes "github.com/docker/docker/api/types/build"
	"github.com/docker/docker/api/types/filters"
	imagetypes "github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/jsonmessage"

	"plinth/logger"
	"plinth/manifest"
	"plinth/types"
)

// Builder assembles app images through the Docker daemon.
type Builder struct {
	docker    *client.Client
	installer []string
	out       io.Writer
	log       *logger.Logger
}

// NewBuilder creates a Builder talking to the daemon configured in the
// environment.
func NewBuilder(installer []string, log *logger.Logger) (*Builder, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	return &Builder{docker: cli, installer: installer, out: io.Discard, log: log}, nil
}

// SetOutput directs the daemon's raw build progress stream to w.
func (b *Builder) SetOutput(w io.Writer) {
	b.out = w
}

// Tag derives the deterministic image tag for an app: the rendered
// Dockerfile, the manifest digest and the source tree content are hashed, so
// the same inputs always map to the same tag.
func Tag(app types.App, m *manifest.Manifest, installer []string) (string, error) {
	h := sha256.New()
	io.WriteString(h, Render(app, installer))
	io.WriteString(h, m.Digest())
	if err := hashTree(h, app.Source); err != nil {
		return "", fmt.Errorf("failed to hash source tree %s: %w", app.Source, err)
	}
	sum := hex.EncodeToString(h.Sum(nil))
	return fmt.Sprintf("plinth/%s:%s", app.Name, sum[:12]), nil
}

// Build assembles the image for app and returns its tag. Building the same
// manifest and source tree again is a no-op: an image already carrying the
// derived tag is reused as is. A failed build leaves no tag behind.
func (b *Builder) Build(ctx context.Context, app types.App, m *manifest.Manifest) (string, error) {
	tag, err := Tag(app, m, b.installer)
	if err != nil {
		return "", err
	}

	exists, err := b.imageExists(ctx, tag)
	if err != nil {
		return "", err
	}
	if exists {
		b.log.Info().Str("image", tag).Msg("image already built, reusing")
		return tag, nil
	}

	dockerfile := Render(app, b.installer)
	buildCtx, err := buildContext(app.Source, []byte(dockerfile))
	if err != nil {
		return "", err
	}

	b.log.Info().Str("image", tag).Str("source", app.Source).Int("dependencies", len(m.Entries)).Msg("building image")

	resp, err := b.docker.ImageBuild(ctx, buildCtx, buildtypes.ImageBuildOptions{
		Tags:        []string{tag},
		Dockerfile:  DockerfileName,
		Remove:      true,
		ForceRemove: true,
		Labels: map[string]string{
			"plinth.app":      app.Name,
			"plinth.manifest": m.Digest(),
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to start build of %s: %w", tag, err)
	}
	defer resp.Body.Close()

	if err := jsonmessage.DisplayJSONMessagesStream(resp.Body, b.out, 0, false, nil); err != nil {
		var jerr *jsonmessage.JSONError
		if errors.As(err, &jerr) {
			return "", &BuildError{Image: tag, Detail: jerr.Message, Err: err}
		}
		return "", fmt.Errorf("failed to read build output of %s: %w", tag, err)
	}

	b.log.Info().Str("image", tag).Msg("image built")
	return tag, nil
}

// Remove deletes the app image carrying tag, tolerating one that is already
// gone.
func (b *Builder) Remove(ctx context.Context, tag string) error {
	_, err := b.docker.ImageRemove(ctx, tag, imagetypes.RemoveOptions{PruneChildren: true})
	if err != nil && !client.IsErrNotFound(err) {
		return fmt.Errorf("failed to remove image %s: %w", tag, err)
	}
	return nil
}

func (b *Builder) imageExists(ctx context.Context, tag string) (bool, error) {
	list, err := b.docker.ImageList(ctx, imagetypes.ListOptions{
		Filters: filters.NewArgs(filters.Arg("reference", tag)),
	})
	if err != nil {
		return false, fmt.Errorf("failed to list images: %w", err)
	}
	return len(list) > 0, nil
}
