package contract

// ArtifactKind enumerates the typed blobs commands can produce.
type ArtifactKind string

const (
	ArtifactDiff        ArtifactKind = "diff"
	ArtifactPatch       ArtifactKind = "patch"
	ArtifactTestResults ArtifactKind = "test-results"
	ArtifactBuildLog    ArtifactKind = "build-log"
	ArtifactLog         ArtifactKind = "log"
	ArtifactPlan        ArtifactKind = "plan"
	ArtifactErrorReport ArtifactKind = "error-report"
	ArtifactConflict    ArtifactKind = "conflict"
)

// Artifact is a typed blob produced by a command. Exactly one of
// InlineText, DownloadURI or PathHint is expected to be set; consumers
// tolerate absence of all three.
type Artifact struct {
	ID          ArtifactID   `json:"id,omitempty"`
	Kind        ArtifactKind `json:"kind"`
	Name        string       `json:"name"`
	ContentType string       `json:"contentType,omitempty"`
	InlineText  string       `json:"inlineText,omitempty"`
	DownloadURI string       `json:"downloadUri,omitempty"`
	PathHint    string       `json:"pathHint,omitempty"`
}

// InlineArtifact builds an artifact carrying its content inline.
func InlineArtifact(kind ArtifactKind, name, contentType, text string) Artifact {
	return Artifact{
		ID:          NewArtifactID(),
		Kind:        kind,
		Name:        name,
		ContentType: contentType,
		InlineText:  text,
	}
}

// PathArtifact builds an artifact referencing a file under the session
// workspace.
func PathArtifact(kind ArtifactKind, name, path string) Artifact {
	return Artifact{
		ID:       NewArtifactID(),
		Kind:     kind,
		Name:     name,
		PathHint: path,
	}
}
