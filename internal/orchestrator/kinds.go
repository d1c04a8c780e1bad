package orchestrator

import (
	"encoding/base64"
	"strings"

	"imagestudio/internal/domain"
	"imagestudio/internal/imaging"
	"imagestudio/internal/providers/bfl"
	"imagestudio/internal/providers/stability"
)

type promptRule int

const (
	promptRequired promptRule = iota
	promptOptional
	// promptUnlessStyle: a style reference or preset can stand in for text.
	promptUnlessStyle
)

// kindSpec is one row of the per-kind table: the input contract checked
// before any network call and the payload builder run after it.
type kindSpec struct {
	minImages int
	maxImages int
	prompt    promptRule
	allowMask bool
	allowRef  bool
	// derivesAspect kinds take their ratio from the input image, so they also
	// accept the ratios only derivation produces.
	derivesAspect bool
	check     func(req domain.OperationRequest) error
	build     func(o *Orchestrator, in *preparedRequest) (domain.Payload, error)
}

var kindTable = map[domain.OperationKind]kindSpec{
	domain.KindGenerate: {
		minImages: 0, maxImages: 0,
		prompt: promptRequired,
		build:  buildGenerate,
	},
	domain.KindEdit: {
		minImages: 1, maxImages: 1,
		prompt:        promptRequired,
		allowMask:     true,
		derivesAspect: true,
		build:         buildEdit,
	},
	domain.KindExpand: {
		minImages: 1, maxImages: 1,
		prompt: promptRequired,
		check:  checkExpand,
		build:  buildExpand,
	},
	domain.KindFuse: {
		minImages: 2, maxImages: 4,
		prompt: promptRequired,
		build:  buildFuse,
	},
	domain.KindStyleTransfer: {
		minImages: 1, maxImages: 1,
		prompt:        promptUnlessStyle,
		allowRef:      true,
		derivesAspect: true,
		check:         checkStyleTransfer,
		build:         buildStyleTransfer,
	},
	domain.KindUpscale: {
		minImages: 1, maxImages: 1,
		prompt: promptOptional,
		build:  buildUpscale,
	},
}

// preparedRequest is a validated request plus the decoded headers of its
// inputs.
type preparedRequest struct {
	domain.OperationRequest
	infos   []imaging.Info
	maskInf *imaging.Info
}

// derivedOnlyRatios are detected from inputs but not offered for text-only
// kinds.
var derivedOnlyRatios = map[string]bool{"3:2": true, "2:3": true}

func checkAspectRatio(req domain.OperationRequest, spec kindSpec) error {
	if spec.derivesAspect || !derivedOnlyRatios[req.Options.AspectRatio] {
		return nil
	}
	return domain.ValidationErrorf("aspect_ratio %s is only available for edit and style transfer", req.Options.AspectRatio)
}

func checkExpand(req domain.OperationRequest) error {
	opts := req.Options
	if opts.Top <= 0 && opts.Bottom <= 0 && opts.Left <= 0 && opts.Right <= 0 {
		return domain.ValidationErrorf("expand needs at least one of top, bottom, left or right above 0")
	}
	return nil
}

func checkStyleTransfer(req domain.OperationRequest) error {
	if preset := strings.TrimSpace(req.Options.StylePreset); preset != "" {
		if _, ok := StylePreset(preset); !ok {
			return domain.ValidationErrorf("style_preset must be one of [%s], got %s", strings.Join(StylePresetIDs(), " "), preset)
		}
	}
	return nil
}

// fluxFields are the options shared by every FLUX endpoint.
func (o *Orchestrator) fluxFields(req domain.OperationRequest, prompt string) map[string]any {
	opts := req.Options
	fields := map[string]any{
		"prompt":           prompt,
		"output_format":    firstNonEmpty(opts.OutputFormat, o.defaults.OutputFormat, "jpeg"),
		"safety_tolerance": o.defaults.SafetyTolerance,
	}
	if opts.SafetyTolerance != nil {
		fields["safety_tolerance"] = *opts.SafetyTolerance
	}
	if opts.Seed != nil {
		fields["seed"] = *opts.Seed
	}
	if opts.WebhookURL != "" {
		fields["webhook_url"] = opts.WebhookURL
		if opts.WebhookSecret != "" {
			fields["webhook_secret"] = opts.WebhookSecret
		}
	}
	return fields
}

func (o *Orchestrator) model(opts domain.Options) string {
	return firstNonEmpty(opts.Model, o.defaults.Model, bfl.ModelKontextMax)
}

func buildGenerate(o *Orchestrator, in *preparedRequest) (domain.Payload, error) {
	fields := o.fluxFields(in.OperationRequest, in.Prompt)
	fields["aspect_ratio"] = firstNonEmpty(in.Options.AspectRatio, "1:1")
	fields["prompt_upsampling"] = in.Options.PromptUpsampling
	return domain.Payload{Endpoint: o.model(in.Options), Fields: fields}, nil
}

func buildEdit(o *Orchestrator, in *preparedRequest) (domain.Payload, error) {
	source := in.InputImages[0]
	fields := o.fluxFields(in.OperationRequest, in.Prompt)
	fields["input_image"] = encodeImage(source.Data)
	fields["aspect_ratio"] = aspectFor(in.Options, in.infos[0])
	if in.Mask != nil {
		if in.maskInf.Width != in.infos[0].Width || in.maskInf.Height != in.infos[0].Height {
			return domain.Payload{}, domain.ValidationErrorf("mask is %dx%d but the image is %dx%d; they must match",
				in.maskInf.Width, in.maskInf.Height, in.infos[0].Width, in.infos[0].Height)
		}
		fields["mask"] = encodeImage(in.Mask.Data)
	}
	return domain.Payload{Endpoint: o.model(in.Options), Fields: fields}, nil
}

func buildExpand(o *Orchestrator, in *preparedRequest) (domain.Payload, error) {
	opts := in.Options
	fields := o.fluxFields(in.OperationRequest, in.Prompt)
	fields["image"] = encodeImage(in.InputImages[0].Data)
	fields["top"] = opts.Top
	fields["bottom"] = opts.Bottom
	fields["left"] = opts.Left
	fields["right"] = opts.Right
	fields["steps"] = 50
	if opts.Steps != nil {
		fields["steps"] = *opts.Steps
	}
	fields["guidance"] = 50.75
	if opts.Guidance != nil {
		fields["guidance"] = *opts.Guidance
	}
	fields["prompt_upsampling"] = opts.PromptUpsampling
	return domain.Payload{Endpoint: bfl.EndpointExpand, Fields: fields}, nil
}

func buildFuse(o *Orchestrator, in *preparedRequest) (domain.Payload, error) {
	inputs := make([][]byte, len(in.InputImages))
	for i, img := range in.InputImages {
		inputs[i] = img.Data
	}
	border := imaging.DefaultBorder
	if in.Options.Border != nil {
		border = *in.Options.Border
	}
	stitched, _, err := imaging.Stitch(inputs, imaging.StitchOptions{
		Layout:  imaging.ParseLayout(in.Options.Layout),
		Border:  border,
		MaxEdge: o.defaults.FuseMaxEdge,
	})
	if err != nil {
		return domain.Payload{}, domain.NewError(domain.CodeValidation, "images could not be combined", err)
	}
	fields := o.fluxFields(in.OperationRequest, in.Prompt)
	fields["input_image"] = encodeImage(stitched)
	fields["aspect_ratio"] = firstNonEmpty(in.Options.AspectRatio, "1:1")
	return domain.Payload{Endpoint: o.model(in.Options), Fields: fields}, nil
}

func buildStyleTransfer(o *Orchestrator, in *preparedRequest) (domain.Payload, error) {
	content := in.InputImages[0].Data
	target := in.infos[0]
	withRef := in.StyleReference != nil
	if withRef {
		stitched, _, err := imaging.Stitch([][]byte{content, in.StyleReference.Data}, imaging.StitchOptions{
			Layout:  imaging.LayoutHorizontal,
			Border:  0,
			MaxEdge: o.defaults.FuseMaxEdge,
		})
		if err != nil {
			return domain.Payload{}, domain.NewError(domain.CodeValidation, "style reference could not be combined with the image", err)
		}
		content = stitched
	}
	prompt := styleInstruction(in.Prompt, in.Options.StylePreset, withRef)
	fields := o.fluxFields(in.OperationRequest, prompt)
	fields["input_image"] = encodeImage(content)
	// The output keeps the content image's proportions, not the stitched pair's.
	fields["aspect_ratio"] = aspectFor(in.Options, target)
	return domain.Payload{Endpoint: o.model(in.Options), Fields: fields}, nil
}

func buildUpscale(o *Orchestrator, in *preparedRequest) (domain.Payload, error) {
	opts := in.Options
	fields := map[string]any{
		"output_format": firstNonEmpty(opts.OutputFormat, o.defaults.OutputFormat, "png"),
	}
	if p := strings.TrimSpace(in.Prompt); p != "" {
		fields["prompt"] = p
	}
	if opts.NegativePrompt != "" {
		fields["negative_prompt"] = opts.NegativePrompt
	}
	if opts.Seed != nil {
		fields["seed"] = *opts.Seed
	}
	if opts.Creativity != nil {
		fields["creativity"] = *opts.Creativity
	}
	return domain.Payload{
		Endpoint: stability.ParseMode(opts.Mode),
		Fields:   fields,
		Files:    map[string][]byte{"image": in.InputImages[0].Data},
	}, nil
}

func aspectFor(opts domain.Options, info imaging.Info) string {
	if opts.AspectRatio != "" {
		return opts.AspectRatio
	}
	return imaging.DetectAspectRatio(info.Width, info.Height)
}

func encodeImage(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
