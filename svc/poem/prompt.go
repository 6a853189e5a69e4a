package poem

import "fmt"

// systemPrompt frames the model as a specialist in the requested form.
func systemPrompt(req GenerateRequest) string {
	return fmt.Sprintf(`You are a professional poet specializing in %s poetry.
Create poetry using %s as the main poetic device.
The tone should be %s.
Write in %s.
Focus on creating emotionally resonant and structurally sound poetry.`,
		req.Type, req.Device, req.Tone, req.Language)
}

// userPrompt carries the structural parameters. The verse count is stated
// twice because the model respects repeated constraints more reliably.
func userPrompt(req GenerateRequest) string {
	verses := req.Length.Verses()
	return fmt.Sprintf(`Write a %s poem with the following parameters:
Length: %s
Poetic Devices: %s
Tone: %s
Personalization: %s
Rhyming Pattern: %s
Theme/Keywords: %s

Instructions:
- Generate exactly %s
- Do not repeat lines or verses
- Ensure the poem is coherent and well-structured
- Follow the specified rhyming pattern
- Incorporate any personalization elements provided
- Use the specified poetic device prominently`,
		req.Type, verses, req.Device, req.Tone, req.Personalization,
		req.RhymingPattern, req.Keywords, verses)
}
