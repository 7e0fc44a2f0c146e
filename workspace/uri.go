package workspace

import (
	"net/url"
	"path"
	"path/filepath"
	"strings"
)

func uriToPath(uri string) (string, error) {
	if strings.HasPrefix(uri, "file://") {
		parsed, err := url.Parse(uri)
		if err != nil {
			return "", err
		}
		return filepath.Clean(parsed.Path), nil
	}
	return uri, nil
}

// documentName is the file name of a document. The script class is named
// after it.
func documentName(uri string) string {
	if p, err := uriToPath(uri); err == nil {
		return path.Base(filepath.ToSlash(p))
	}
	return path.Base(uri)
}
