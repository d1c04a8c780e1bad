package orchestrator

import (
	"sort"
	"strings"
)

// stylePresets maps preset ids onto the style instruction sent to the model.
var stylePresets = map[string]string{
	"oil-painting":   "oil painting style with thick brushstrokes, rich textures, and artistic depth",
	"watercolor":     "watercolor painting style with soft flowing colors, transparent washes, and paper texture",
	"sketch":         "pencil sketch style with detailed graphite lines, cross-hatching, and natural paper texture",
	"anime":          "anime art style with vibrant colors, clean lines, and manga-inspired aesthetics",
	"impressionist":  "impressionist painting style with soft brushstrokes, light effects, and atmospheric quality",
	"abstract":       "abstract art style with geometric shapes, bold colors, and modern artistic interpretation",
	"van-gogh":       "Van Gogh painting style with swirling brushstrokes, expressive colors, and post-impressionist technique",
	"picasso":        "Picasso cubist style with geometric faces, fragmented forms, and modernist approach",
	"photorealistic": "photorealistic style with high detail, natural lighting, and lifelike appearance",
	"cartoon":        "cartoon style with bold outlines, bright colors, and simplified forms",
	"vintage-poster": "vintage poster style with retro colors, bold typography, and classic design elements",
	"sci-fi":         "futuristic sci-fi style with neon colors, digital effects, and cyberpunk aesthetics",
}

// StylePreset returns the instruction for a preset id.
func StylePreset(id string) (string, bool) {
	prompt, ok := stylePresets[strings.ToLower(strings.TrimSpace(id))]
	return prompt, ok
}

// StylePresetIDs lists the preset ids in sorted order.
func StylePresetIDs() []string {
	ids := make([]string, 0, len(stylePresets))
	for id := range stylePresets {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

const referenceStyleInstruction = "The image is two pictures side by side. Redraw the left picture in the artistic style of the right picture, keeping the left picture's subject, composition and layout. Output only the restyled left picture."

// styleInstruction assembles the final StyleTransfer prompt from the user's
// text, an optional preset and whether a reference image was stitched in.
func styleInstruction(prompt, preset string, withReference bool) string {
	prompt = strings.TrimSpace(prompt)
	presetPrompt, _ := StylePreset(preset)
	var parts []string
	switch {
	case withReference:
		parts = append(parts, referenceStyleInstruction)
	case presetPrompt != "":
		parts = append(parts, "Transform this image into "+presetPrompt+", keeping the original subject and composition.")
	}
	if withReference && presetPrompt != "" {
		parts = append(parts, "Lean towards "+presetPrompt+".")
	}
	if prompt != "" {
		parts = append(parts, prompt)
	}
	return strings.Join(parts, " ")
}
