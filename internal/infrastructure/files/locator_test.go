package files

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"pcb-inspector/internal/domain/entity"
)

func touch(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	return path
}

func TestDirLocator_Locate(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "b_P100.png")
	first := touch(t, dir, "a_P100.jpg")
	touch(t, dir, "a_P1000.png")
	touch(t, dir, "c_P100.bmp")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "0_P200.png"), 0o755))

	l := NewDirLocator(dir, []string{"png", ".jpg", " "})
	require.Equal(t, []string{"png", "jpg"}, l.Extensions)

	path, err := l.Locate(context.Background(), "P100")
	require.NoError(t, err)
	require.Equal(t, first, path)

	_, err = l.Locate(context.Background(), "P200")
	require.ErrorIs(t, err, entity.ErrImageNotFound)

	_, err = l.Locate(context.Background(), "P999")
	require.ErrorIs(t, err, entity.ErrImageNotFound)
}

func TestDirLocator_RejectsUnsafeIDs(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "board_P1.png")
	l := NewDirLocator(dir, []string{"png"})

	for _, id := range []string{"", "*", "P?", "[P]1", "../P1", "a/P1", ".."} {
		_, err := l.Locate(context.Background(), id)
		require.ErrorIs(t, err, entity.ErrImageNotFound, "id %q", id)
	}
}
