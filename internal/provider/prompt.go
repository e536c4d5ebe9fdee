package provider

import (
	"fmt"

	"github.com/fleveque/heliassets/internal/model"
)

const (
	militaryStyle = "military camouflage paint scheme, tactical equipment visible"
	civilianStyle = "sleek white and blue corporate livery, polished finish"
)

// BuildPrompt creates the image-generation prompt for an item.
// Only the livery sentence depends on the category; the scene is fixed so every
// image in the catalogue shares the same hangar backdrop.
func BuildPrompt(item model.Item) string {
	style := civilianStyle
	if item.Category == model.CategoryMilitary {
		style = militaryStyle
	}

	subject := item.DisplayName()
	if item.Description != "" {
		subject = fmt.Sprintf("%s helicopter (%s)", subject, item.Description)
	} else {
		subject += " helicopter"
	}

	return fmt.Sprintf(`Generate a highly detailed, photorealistic image of a %s.

The helicopter has a %s.

It is parked on a concrete tarmac helipad. Directly behind the helicopter is a large modern aviation hangar painted in dark corporate blue color (similar to Airbus corporate blue). The hangar has clean lines and a professional industrial look.

The scene is set on a clear sunny day with soft shadows. The image should look like professional aviation photography, sharp focus, high detail, 16:9 aspect ratio.

Do NOT include any text, watermarks, or logos on the image.`, subject, style)
}
