package container

import (
	"context"
	"fmt"
	"io"
	"os/exec"
)

// PrintDockerState writes the output of `docker images` and `docker container ls`
// under the given title. A missing docker CLI is reported, not fatal.
func PrintDockerState(ctx context.Context, w io.Writer, title string) {
	fmt.Fprintf(w, "%s\n", title)
	for _, args := range [][]string{{"images"}, {"container", "ls"}} {
		out, err := exec.CommandContext(ctx, "docker", args...).CombinedOutput()
		if err != nil {
			fmt.Fprintf(w, "docker %v failed: %v\n", args, err)
			continue
		}
		fmt.Fprintf(w, "%s\n", out)
	}
}
