package scene

import "strings"

// Material property keys.
const (
	KeyEffect    = "mat_effect"
	KeyID        = "mat_id"
	KeyAliasing  = "enable_aliasing"
	KeyPreset    = "active_shader_preset_name"
	KeySubstance = "substance"

	AttrPrefix = "shader_attribute_"
	TexPrefix  = "shader_texture_"

	SuffixLocked   = "_locked"
	SuffixSettings = "_settings"
	SuffixMapType  = "_map_type"
	SuffixUV       = "_uv"

	// Imported materials keep their attribute and texture tables
	// verbatim in these collections.
	KeyImportedAttributes = "imported_attributes"
	KeyImportedTextures   = "imported_textures"
)

// ImportedPreset marks a material whose tables came from a file and are
// written back as they are.
const ImportedPreset = "<imported>"

// Material is a host material with its property bag. The bag holds the
// values of the active look.
type Material struct {
	Name  string
	ID    int
	Props Props
}

// Effect returns the full effect name, e.g. eut2.dif.spec.
func (m *Material) Effect() string {
	v, _ := m.Props.Get(KeyEffect)
	return v.Str
}

// Aliasing reports whether texture aliasing is enabled.
func (m *Material) Aliasing() bool {
	v, _ := m.Props.Get(KeyAliasing)
	return v.Truthy()
}

// Imported reports whether the material came from an imported file.
func (m *Material) Imported() bool {
	v, _ := m.Props.Get(KeyPreset)
	return v.Str == ImportedPreset
}

// Attribute returns the value of a shader attribute by tag.
func (m *Material) Attribute(tag string) (Value, bool) {
	return m.Props.Get(AttrKey(tag))
}

// Texture returns the host path of the texture slot.
func (m *Material) Texture(typ string) string {
	v, _ := m.Props.Get(TexPrefix + typ)
	return v.Str
}

// TextureLocked reports whether the slot is locked across looks.
func (m *Material) TextureLocked(typ string) bool {
	v, _ := m.Props.Get(TexPrefix + typ + SuffixLocked)
	return v.Truthy()
}

// TextureUV returns the UV layer names mapped to the slot.
func (m *Material) TextureUV(typ string) []string {
	v, ok := m.Props.Get(TexPrefix + typ + SuffixUV)
	if !ok {
		return nil
	}
	switch v.Kind {
	case KindString:
		if v.Str == "" {
			return nil
		}
		return []string{v.Str}
	case KindCollection:
		var out []string
		for _, r := range v.Records {
			if n, ok := r.Get("value"); ok && n.Str != "" {
				out = append(out, n.Str)
			}
		}
		return out
	}
	return nil
}

// AttrKey returns the bag key of an attribute tag. Array tags such as
// aux[5] map to aux5.
func AttrKey(tag string) string {
	tag = strings.NewReplacer("[", "", "]", "").Replace(tag)
	return AttrPrefix + tag
}

// TextureKey returns the bag key of a texture slot type.
func TextureKey(typ string) string { return TexPrefix + typ }

// IsTextureSubKey reports whether key is a per-slot sub property.
func IsTextureSubKey(key string) bool {
	if !strings.HasPrefix(key, TexPrefix) {
		return false
	}
	for _, s := range []string{SuffixLocked, SuffixSettings, SuffixMapType, SuffixUV} {
		if strings.HasSuffix(key, s) {
			return true
		}
	}
	return false
}

// TextureSlotOf returns the slot type of a texture path key, or "" when
// key is not a texture path key.
func TextureSlotOf(key string) string {
	if !strings.HasPrefix(key, TexPrefix) || IsTextureSubKey(key) {
		return ""
	}
	return strings.TrimPrefix(key, TexPrefix)
}

// Snapshot returns the look-scoped copy of a material's bag: every
// property except the material id, the aliasing switch and the texture
// lock, settings and map type sub properties.
func Snapshot(m *Material) Props {
	var out Props
	for _, p := range m.Props {
		if !Snapshotted(p.Key) {
			continue
		}
		out = append(out, Prop{Key: p.Key, Value: p.Value.Clone()})
	}
	return out
}

// Snapshotted reports whether key is stored in looks.
func Snapshotted(key string) bool {
	switch key {
	case KeyID, KeyAliasing:
		return false
	}
	if strings.HasPrefix(key, TexPrefix) {
		for _, s := range []string{SuffixLocked, SuffixSettings, SuffixMapType} {
			if strings.HasSuffix(key, s) {
				return false
			}
		}
	}
	return true
}
