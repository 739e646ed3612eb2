package migrate

import (
	"fmt"

	"github.com/blang/semver/v4"
)

// Schema history:
//
//	1.0.0  colors, typography with a flat "sizes" map, spacing, and a
//	       "radius" section keyed small/medium/large.
//	1.1.0  adds the shadows section.
//	2.0.0  renames "radius" to "radii" with sm/md/lg keys and moves
//	       typography sizes to "font_sizes".
func builtinRules() []Rule {
	return []Rule{
		{
			From:   semver.MustParse("1.0.0"),
			To:     semver.MustParse("1.1.0"),
			Apply:  addShadows,
			Revert: dropShadows,
		},
		{
			From:   semver.MustParse("1.1.0"),
			To:     semver.MustParse("2.0.0"),
			Apply:  restructureV2,
			Revert: revertV2,
		},
	}
}

func addShadows(doc map[string]any) error {
	if _, ok := doc["shadows"]; !ok {
		doc["shadows"] = []any{}
	}
	return nil
}

func dropShadows(doc map[string]any) error {
	delete(doc, "shadows")
	return nil
}

var radiusRenames = map[string]string{
	"small":  "sm",
	"medium": "md",
	"large":  "lg",
}

func restructureV2(doc map[string]any) error {
	if radius, ok := doc["radius"].(map[string]any); ok {
		values := map[string]any{}
		for name, v := range radius {
			if short, ok := radiusRenames[name]; ok {
				name = short
			}
			values[name] = v
		}
		doc["radii"] = map[string]any{"values": values}
		delete(doc, "radius")
	}

	typo, ok := doc["typography"].(map[string]any)
	if !ok {
		return nil
	}
	if sizes, ok := typo["sizes"]; ok {
		if _, isMap := sizes.(map[string]any); !isMap {
			return fmt.Errorf("typography sizes is not an object")
		}
		typo["font_sizes"] = sizes
		delete(typo, "sizes")
	}
	return nil
}

func revertV2(doc map[string]any) error {
	if radii, ok := doc["radii"].(map[string]any); ok {
		values, _ := radii["values"].(map[string]any)
		radius := map[string]any{}
		for name, v := range values {
			for long, short := range radiusRenames {
				if name == short {
					name = long
					break
				}
			}
			radius[name] = v
		}
		doc["radius"] = radius
		delete(doc, "radii")
	}

	if typo, ok := doc["typography"].(map[string]any); ok {
		if sizes, ok := typo["font_sizes"]; ok {
			typo["sizes"] = sizes
			delete(typo, "font_sizes")
		}
	}
	return nil
}
