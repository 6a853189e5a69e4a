package poem

import (
	"fmt"
	"time"
)

// Type is the poetic form to generate. Values are persisted verbatim and
// shown in the UI, hence the human-readable casing.
type Type string

const (
	TypeHaiku      Type = "Haiku"
	TypeFreeVerse  Type = "Free Verse"
	TypeSonnet     Type = "Sonnet"
	TypeBallad     Type = "Ballad"
	TypeLimerick   Type = "Limerick"
	TypeVillanelle Type = "Villanelle"
	TypeOde        Type = "Ode"
	TypeElegy      Type = "Elegy"
	TypeAcrostic   Type = "Acrostic"
	TypeEpic       Type = "Epic"
)

var validTypes = map[Type]bool{
	TypeHaiku: true, TypeFreeVerse: true, TypeSonnet: true, TypeBallad: true,
	TypeLimerick: true, TypeVillanelle: true, TypeOde: true, TypeElegy: true,
	TypeAcrostic: true, TypeEpic: true,
}

// Length controls verse count and the generation token ceiling.
type Length string

const (
	LengthShort  Length = "Short"
	LengthMedium Length = "Medium"
	LengthLong   Length = "Long"
)

// Verses returns the verse count instruction for the prompt.
func (l Length) Verses() string {
	switch l {
	case LengthMedium:
		return "4 verses"
	case LengthLong:
		return "6 verses"
	default:
		return "2 verses"
	}
}

// MaxTokens returns the completion token ceiling for the length.
func (l Length) MaxTokens() int {
	switch l {
	case LengthMedium:
		return 400
	case LengthLong:
		return 600
	default:
		return 200
	}
}

func (l Length) Valid() bool {
	switch l {
	case LengthShort, LengthMedium, LengthLong:
		return true
	}
	return false
}

// Device is the dominant poetic device woven into the generation prompt.
type Device string

const (
	DeviceMetaphor        Device = "Metaphor"
	DeviceSimile          Device = "Simile"
	DeviceAlliteration    Device = "Alliteration"
	DeviceAssonance       Device = "Assonance"
	DevicePersonification Device = "Personification"
	DeviceImagery         Device = "Imagery"
	DeviceSymbolism       Device = "Symbolism"
	DeviceHyperbole       Device = "Hyperbole"
	DeviceOnomatopoeia    Device = "Onomatopoeia"
	DeviceEnjambment      Device = "Enjambment"
)

var validDevices = map[Device]bool{
	DeviceMetaphor: true, DeviceSimile: true, DeviceAlliteration: true,
	DeviceAssonance: true, DevicePersonification: true, DeviceImagery: true,
	DeviceSymbolism: true, DeviceHyperbole: true, DeviceOnomatopoeia: true,
	DeviceEnjambment: true,
}

// Tone sets the emotional register of the poem.
type Tone string

const (
	ToneKidFriendly   Tone = "Kid-friendly"
	ToneInspirational Tone = "Inspirational"
	ToneSad           Tone = "Sad"
	ToneHumorous      Tone = "Humorous"
	ToneLovely        Tone = "Lovely"
	ToneClassical     Tone = "Classical"
	ToneContemporary  Tone = "Contemporary"
	ToneStoryLike     Tone = "Story-like"
	ToneSuspenseful   Tone = "Suspenseful"
	ToneDark          Tone = "Dark"
	ToneModernist     Tone = "Modernist"
	ToneNature        Tone = "Nature"
	ToneAdventure     Tone = "Adventure"
)

var validTones = map[Tone]bool{
	ToneKidFriendly: true, ToneInspirational: true, ToneSad: true,
	ToneHumorous: true, ToneLovely: true, ToneClassical: true,
	ToneContemporary: true, ToneStoryLike: true, ToneSuspenseful: true,
	ToneDark: true, ToneModernist: true, ToneNature: true, ToneAdventure: true,
}

// RhymingPattern is the requested rhyme scheme.
type RhymingPattern string

const (
	RhymeNone  RhymingPattern = "No Rhyme"
	RhymeAABB  RhymingPattern = "AABB"
	RhymeABAB  RhymingPattern = "ABAB"
	RhymeAAAA  RhymingPattern = "AAAA"
	RhymeABBA  RhymingPattern = "ABBA"
	RhymeABCB  RhymingPattern = "ABCB"
	RhymeABAC  RhymingPattern = "ABAC"
	RhymeAABA  RhymingPattern = "AABA"
	RhymeABCA  RhymingPattern = "ABCA"
	RhymeABBAC RhymingPattern = "ABBAC"
)

var validRhymes = map[RhymingPattern]bool{
	RhymeNone: true, RhymeAABB: true, RhymeABAB: true, RhymeAAAA: true,
	RhymeABBA: true, RhymeABCB: true, RhymeABAC: true, RhymeAABA: true,
	RhymeABCA: true, RhymeABBAC: true,
}

// Language the poem is written in.
type Language string

const (
	LanguageEnglish Language = "English"
	LanguageFrench  Language = "French"
	LanguageSpanish Language = "Spanish"
	LanguageGerman  Language = "German"
	LanguageUrdu    Language = "Urdu"
)

var validLanguages = map[Language]bool{
	LanguageEnglish: true, LanguageFrench: true, LanguageSpanish: true,
	LanguageGerman: true, LanguageUrdu: true,
}

// GenerateRequest is the full parameter set for a poem generation.
type GenerateRequest struct {
	Type            Type           `json:"poemType"`
	Length          Length         `json:"poemLength"`
	Device          Device         `json:"poeticDevice"`
	Tone            Tone           `json:"tone"`
	RhymingPattern  RhymingPattern `json:"rhymingPattern"`
	Language        Language       `json:"language"`
	Personalization string         `json:"personalization,omitempty"`
	Keywords        string         `json:"keywords,omitempty"`
}

// Validate checks enum membership and applies the language default.
func (r *GenerateRequest) Validate() error {
	if !validTypes[r.Type] {
		return fmt.Errorf("%w: poem type %q", ErrInvalidRequest, r.Type)
	}
	if !r.Length.Valid() {
		return fmt.Errorf("%w: poem length %q", ErrInvalidRequest, r.Length)
	}
	if !validDevices[r.Device] {
		return fmt.Errorf("%w: poetic device %q", ErrInvalidRequest, r.Device)
	}
	if !validTones[r.Tone] {
		return fmt.Errorf("%w: tone %q", ErrInvalidRequest, r.Tone)
	}
	if !validRhymes[r.RhymingPattern] {
		return fmt.Errorf("%w: rhyming pattern %q", ErrInvalidRequest, r.RhymingPattern)
	}
	if r.Language == "" {
		r.Language = LanguageEnglish
	}
	if !validLanguages[r.Language] {
		return fmt.Errorf("%w: language %q", ErrInvalidRequest, r.Language)
	}
	return nil
}

// Poem is a persisted generation result.
type Poem struct {
	ID              string         `bson:"_id" json:"id"`
	UserID          string         `bson:"user_id" json:"userId"`
	Content         string         `bson:"poem" json:"poem"`
	Type            Type           `bson:"poem_type" json:"poemType"`
	Length          Length         `bson:"poem_length" json:"poemLength"`
	Device          Device         `bson:"poetic_device" json:"poeticDevice"`
	Tone            Tone           `bson:"tone" json:"tone"`
	RhymingPattern  RhymingPattern `bson:"rhyming_pattern" json:"rhymingPattern"`
	Language        Language       `bson:"language" json:"language"`
	Personalization string         `bson:"personalization,omitempty" json:"personalization,omitempty"`
	Keywords        string         `bson:"keywords,omitempty" json:"keywords,omitempty"`
	CreatedAt       time.Time      `bson:"created_at" json:"createdAt"`
}

// ListOptions controls pagination and filtering of a user's poems.
type ListOptions struct {
	Page     int
	PerPage  int
	Type     Type
	Language Language
	SortDesc bool
}

// Normalize clamps pagination to sane bounds.
func (o *ListOptions) Normalize() {
	if o.Page < 1 {
		o.Page = 1
	}
	if o.PerPage < 1 || o.PerPage > 100 {
		o.PerPage = 10
	}
}

// Page is a paginated poem listing.
type Page struct {
	Poems      []Poem `json:"poems"`
	Current    int    `json:"current"`
	TotalPages int    `json:"total"`
	TotalPoems int64  `json:"totalPoems"`
}

// Usage aggregates a user's generation activity for a date window.
type Usage struct {
	Total  int64            `json:"total"`
	ByDate map[string]int64 `json:"byDate"` // YYYY-MM-DD keys
	ByType map[string]int64 `json:"byType"`
}
