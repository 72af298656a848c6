// Package ingest classifies upload requests into content categories.
package ingest

import (
	"regexp"
	"strings"

	"github.com/quaigle/quaigle/internal/models"
)

// Request identifies one upload: a file name (when raw bytes were supplied)
// or a URL-ish reference string. Exactly one of the two must be set.
type Request struct {
	FileName string
	HasFile  bool
	URL      string
}

// Artifact is a classified upload, ready to be handed to the lifecycle manager.
type Artifact struct {
	// SourceID is the original file name or URL, echoed back to the client.
	SourceID string
	Category models.ContentCategory
	// StagedName is the file name under the data directory holding the
	// payload bytes. Empty for webpages, which carry RemoteURL instead.
	StagedName string
	RemoteURL  string
}

var refSplitter = regexp.MustCompile(`[./]`)

// Classify applies the routing rules, first match wins:
//  1. both file and URL -> ErrDoubleUpload; neither -> ErrNoUpload
//  2. file bytes: suffix txt/pdf/sqlite/db selects the category,
//     anything else is an UnsupportedFileTypeError
//  3. URL "…data/<name>.txt" -> text from pre-staged local storage
//  4. URL whose first [./]-segment contains "http" (case-insensitive) -> webpage
//  5. anything else -> ErrMissingSchema
func Classify(req Request) (*Artifact, error) {
	switch {
	case req.HasFile && req.URL != "":
		return nil, ErrDoubleUpload
	case !req.HasFile && req.URL == "":
		return nil, ErrNoUpload
	case req.HasFile:
		return classifyFile(req.FileName)
	default:
		return classifyURL(req.URL)
	}
}

func classifyFile(name string) (*Artifact, error) {
	segments := strings.Split(name, ".")
	suffix := segments[len(segments)-1]
	var category models.ContentCategory
	switch suffix {
	case "txt":
		category = models.CategoryText
	case "pdf":
		category = models.CategoryPDF
	case "sqlite", "db":
		category = models.CategoryDatabase
	default:
		return nil, &UnsupportedFileTypeError{Suffix: suffix}
	}
	return &Artifact{SourceID: name, Category: category, StagedName: name}, nil
}

func classifyURL(ref string) (*Artifact, error) {
	segments := refSplitter.Split(ref, -1)
	if n := len(segments); n >= 3 && segments[n-1] == "txt" && segments[n-3] == "data" {
		staged := segments[n-2] + ".txt"
		return &Artifact{SourceID: ref, Category: models.CategoryText, StagedName: staged}, nil
	}
	if strings.Contains(strings.ToLower(segments[0]), "http") {
		return &Artifact{SourceID: ref, Category: models.CategoryWebpage, RemoteURL: ref}, nil
	}
	return nil, ErrMissingSchema
}
