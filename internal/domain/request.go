package domain

// InputImage is one user-supplied image. Path is set when the bytes were
// staged on disk by the upload ingest; such files are removed once the
// operation finishes.
type InputImage struct {
	Path     string
	Filename string
	MIME     string
	Data     []byte
}

// Options is the bag of named provider parameters a user may set. Legality is
// declared in the validate tags and checked before any provider call.
type Options struct {
	AspectRatio      string   `json:"aspect_ratio,omitempty" validate:"omitempty,oneof=1:1 16:9 9:16 4:3 3:4 7:3 3:7 3:2 2:3"`
	OutputFormat     string   `json:"output_format,omitempty" validate:"omitempty,oneof=jpeg png"`
	Seed             *int64   `json:"seed,omitempty" validate:"omitempty,min=0"`
	SafetyTolerance  *int     `json:"safety_tolerance,omitempty" validate:"omitempty,min=0,max=2"`
	Model            string   `json:"model,omitempty" validate:"omitempty,oneof=flux-kontext-max flux-kontext-pro"`
	PromptUpsampling bool     `json:"prompt_upsampling,omitempty"`
	Top              int      `json:"top,omitempty" validate:"min=0"`
	Bottom           int      `json:"bottom,omitempty" validate:"min=0"`
	Left             int      `json:"left,omitempty" validate:"min=0"`
	Right            int      `json:"right,omitempty" validate:"min=0"`
	Steps            *int     `json:"steps,omitempty" validate:"omitempty,min=15,max=50"`
	Guidance         *float64 `json:"guidance,omitempty" validate:"omitempty,min=1.5,max=100"`
	Creativity       *float64 `json:"creativity,omitempty" validate:"omitempty,min=0,max=1"`
	Mode             string   `json:"mode,omitempty" validate:"omitempty,oneof=conservative creative fast"`
	NegativePrompt   string   `json:"negative_prompt,omitempty" validate:"max=10000"`
	Layout           string   `json:"layout,omitempty" validate:"omitempty,oneof=horizontal vertical grid"`
	Border           *int     `json:"border,omitempty" validate:"omitempty,min=0,max=200"`
	StylePreset      string   `json:"style_preset,omitempty"`
	WebhookURL       string   `json:"webhook_url,omitempty" validate:"omitempty,url"`
	WebhookSecret    string   `json:"webhook_secret,omitempty"`
}

// OperationRequest is the normalized description of one user operation.
type OperationRequest struct {
	Kind        OperationKind
	Prompt      string
	InputImages []InputImage
	// Mask turns an Edit into inpainting; it must match the input dimensions.
	Mask *InputImage
	// StyleReference lets StyleTransfer derive its instruction from an image.
	StyleReference *InputImage
	Options        Options
}

// StagedPaths lists every on-disk input belonging to the request.
func (r OperationRequest) StagedPaths() []string {
	var paths []string
	for _, img := range r.InputImages {
		if img.Path != "" {
			paths = append(paths, img.Path)
		}
	}
	for _, img := range []*InputImage{r.Mask, r.StyleReference} {
		if img != nil && img.Path != "" {
			paths = append(paths, img.Path)
		}
	}
	return paths
}

// Payload is the provider-bound request built by the orchestrator. Endpoint
// names the provider route (a model id or upscale mode), Fields carries JSON
// or form values, and Files carries raw binary parts for multipart providers.
type Payload struct {
	Endpoint string
	Fields   map[string]any
	Files    map[string][]byte
}
