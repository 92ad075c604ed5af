package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

//InSlice returns true if given string appears in given slice
func InSlice(lookingFor string, slice []string) bool {
	for _, s := range slice {
		if s == lookingFor {
			return true
		}
	}

	return false
}

//ListDir returns a sorted list of files/ directories in given path
func ListDir(path string) ([]string, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("ListDir: Error, got '%v'", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)

	return names, nil
}

//ListVideos returns the names of the files in given path which have a known video extension
func ListVideos(path string) ([]string, error) {
	names, err := ListDir(path)
	if err != nil {
		return nil, err
	}

	videos := make([]string, 0, len(names))
	for _, name := range names {
		if IsVideoName(name) {
			videos = append(videos, name)
		}
	}

	return videos, nil
}

//IsVideoName returns true if given file name has one of VideoExtensions
func IsVideoName(name string) bool {
	return InSlice(strings.ToLower(filepath.Ext(name)), VideoExtensions)
}

//SafeJoin joins a client supplied file name to dir, rejecting names that would leave dir
func SafeJoin(dir, name string) (string, error) {
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." {
		return "", fmt.Errorf("invalid file name '%s'", name)
	}
	return filepath.Join(dir, name), nil
}
