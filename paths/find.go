// Package paths locates data files which may live next to the binary, in the
// source tree, or in a Bazel runfiles tree.
package paths

import (
	"os"
	"path/filepath"

	"github.com/golang/glog"
	"github.com/pkg/errors"
)

// getPossiblePathDirs lists the directories searched by Find, in order.
func getPossiblePathDirs() []string {
	var dirs []string
	if d := os.Getenv("LOBBY_DATAFILES"); d != "" {
		dirs = append(dirs, d)
	}
	dirs = append(dirs, "datafiles")
	if gopath := os.Getenv("GOPATH"); gopath != "" {
		dirs = append(dirs, filepath.Join(gopath, "src/badc0de.net/pkg/go-lobby/datafiles"))
	}
	if srcdir := os.Getenv("TEST_SRCDIR"); srcdir != "" {
		dirs = append(dirs, filepath.Join(srcdir, "go_lobby/datafiles"))
	}
	if len(os.Args) > 0 {
		dirs = append(dirs, os.Args[0]+".runfiles/go_lobby/datafiles")
	}
	return dirs
}

func getPossiblePaths(fileName string) []string {
	dirs := getPossiblePathDirs()
	paths := make([]string, 0, len(dirs))
	for _, dir := range dirs {
		paths = append(paths, filepath.Join(dir, fileName))
	}
	return paths
}

// Find locates the passed datafile shortname and returns an absolute or
// relative path to find the datafile at, or an empty string if it is
// nowhere to be found.
//
// For example, for "keylayouts.yaml" it may return
// "lobbyserv.runfiles/go_lobby/datafiles/keylayouts.yaml".
func Find(fileName string) string {
	for _, path := range getPossiblePaths(fileName) {
		if st, err := os.Stat(path); err == nil && !st.IsDir() {
			glog.V(2).Infof("paths.Find(%q)=%s", fileName, path)
			return path
		}
	}
	return ""
}

// Open locates the passed file in the same locations that Find would look, and
// opens it. If Find returns an empty string, an error wrapping os.ErrNotExist
// is returned.
func Open(fileName string) (*os.File, error) {
	path := Find(fileName)
	if path == "" {
		return nil, errors.Wrapf(os.ErrNotExist, "paths.Open(%q)", fileName)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "paths.Open(%q)", fileName)
	}
	return f, nil
}
