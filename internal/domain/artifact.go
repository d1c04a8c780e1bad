package domain

import (
	"errors"
	"time"
)

// StoredArtifact is a persisted operation output. It is created once and only
// removed by the age-based sweep.
type StoredArtifact struct {
	Kind      OperationKind
	Key       string
	Path      string
	URL       string
	Format    string
	SizeBytes int64
	Width     int
	Height    int
	CreatedAt time.Time
}

// Result is the uniform outcome of an operation, whatever its kind.
type Result struct {
	Success           bool          `json:"success"`
	Kind              OperationKind `json:"kind,omitempty"`
	JobID             string        `json:"jobId,omitempty"`
	ArtifactPath      string        `json:"artifactPath,omitempty"`
	ArtifactURL       string        `json:"artifactUrl,omitempty"`
	ArtifactSourceURL string        `json:"artifactSourceUrl,omitempty"`
	Width             int           `json:"width,omitempty"`
	Height            int           `json:"height,omitempty"`
	SizeBytes         int64         `json:"sizeBytes,omitempty"`
	Scale             float64       `json:"scale,omitempty"`

	ErrorCode ErrorCode `json:"errorCode,omitempty"`
	Message   string    `json:"message,omitempty"`
	Hint      string    `json:"hint,omitempty"`
	Category  Category  `json:"category,omitempty"`
}

// FailureResult converts any error into the uniform failure shape.
func FailureResult(kind OperationKind, err error) Result {
	code := CodeOf(err)
	if code == "" {
		code = CodeInternal
	}
	message := "operation failed"
	if err != nil {
		message = err.Error()
		var coded *Error
		if errors.As(err, &coded) && coded.Message != "" {
			message = coded.Message
		}
	}
	return Result{
		Success:   false,
		Kind:      kind,
		ErrorCode: code,
		Message:   message,
		Hint:      code.Hint(),
		Category:  code.Category(),
	}
}
