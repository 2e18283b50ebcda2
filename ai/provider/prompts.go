package provider

import (
	"fmt"
	"sort"
	"strings"
)

// AttributeKind names the graph attribute a variant is generated for.
type AttributeKind string

const (
	AttributeName        AttributeKind = "name"
	AttributeDescription AttributeKind = "description"
	AttributeType        AttributeKind = "type"
	AttributePredicate   AttributeKind = "predicate"
)

const variantSystemPrompt = "You rewrite knowledge graph labels and descriptions. " +
	"Respond with the requested text only, no explanations or formatting."

// Instruction variants per attribute. The engine draws one per task from its
// seeded sampler so the transformation angle varies across entities but is
// fixed for a given seed.
var nameInstructions = []string{
	"an official abbreviation or acronym",
	"a legally recognized alternative or trade name",
	"a widely used descriptive reference",
}

var typeInstructions = []string{
	"a synonym for the category",
	"an alternative labeling convention for the category",
}

var predicateInstructions = []string{
	"a synonymous relation label",
	"an alternative naming convention for the relation",
}

// Instructions returns the instruction variants for an attribute kind.
// Description synthesis takes no instruction; its prompt already asks for a
// fresh perspective.
func Instructions(kind AttributeKind) []string {
	switch kind {
	case AttributeName:
		return nameInstructions
	case AttributeType:
		return typeInstructions
	case AttributePredicate:
		return predicateInstructions
	default:
		return nil
	}
}

// buildVariantPrompt renders the user prompt for one variant request.
func buildVariantPrompt(req VariantRequest) string {
	switch req.Attribute {
	case AttributeDescription:
		return buildDescriptionPrompt(req)
	case AttributePredicate:
		return buildPredicatePrompt(req)
	case AttributeType:
		return buildTypePrompt(req)
	default:
		return buildNamePrompt(req)
	}
}

func buildNamePrompt(req VariantRequest) string {
	entityType := req.EntityType
	if entityType == "" {
		entityType = "entity"
	}
	angle := "official abbreviations, legally recognized alternative names, and widely used descriptive references"
	if req.Instruction != "" {
		angle = req.Instruction
	}
	return fmt.Sprintf(`Generate one alternative name for the following %s that is commonly recognized and actually used.
The alternative should help a model understand that the original entity and the generated alternative refer to the same real-world concept, person, or thing.

Prefer %s.

Constraints:
- Generate only one alternative.
- The alternative must refer to the exact same entity.
- Only provide the alternative if you are confident it is real and commonly used.
- If you are unsure about a good alternative, return the original name unchanged.
- Do not include any additional text beyond the alternative itself.

Entity: %s
Alternative:`, entityType, angle, req.CurrentValue)
}

func buildDescriptionPrompt(req VariantRequest) string {
	var attrs strings.Builder
	if len(req.Context) > 0 {
		keys := make([]string, 0, len(req.Context))
		for k := range req.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&attrs, "- %s: %s\n", k, req.Context[k])
		}
	}

	return fmt.Sprintf(`Given the following entity, generate a concise, natural-sounding description that could appear in a different knowledge graph or context.
The new description should refer to the same real-world entity but present it from a fresh perspective.

Use your world knowledge to capture the entity's essence and significance. The description may include additional context or background, and may focus on different aspects than the provided attributes.

Constraints:
- Generate only the new description.
- Do not include any extra text, explanations, or formatting.
- Ensure the description clearly refers to the same real-world entity.

Entity Name: %s
Entity Type: %s

Available Attributes:
%s
New Description:`, req.EntityName, req.EntityType, attrs.String())
}

func buildTypePrompt(req VariantRequest) string {
	angle := "a synonym for the category"
	if req.Instruction != "" {
		angle = req.Instruction
	}
	return fmt.Sprintf(`Generate one alternative label for the following entity type that is commonly recognized and actually used. Prefer %s.

Constraints:
- Generate only one alternative.
- The alternative must describe the same category of entity.
- If you are unsure about a good alternative, return the original label unchanged.
- Do not include any additional text beyond the alternative itself.

Entity Type: %s
Alternative:`, angle, req.CurrentValue)
}

func buildPredicatePrompt(req VariantRequest) string {
	angle := "a synonymous relation label"
	if req.Instruction != "" {
		angle = req.Instruction
	}
	return fmt.Sprintf(`Generate one alternative name for the following relation type that is commonly recognized and actually used. Prefer %s.

Constraints:
- Generate only one alternative.
- Only provide the alternative if you are confident it is real and commonly used.
- If you are unsure about a good alternative, return the original name unchanged.
- Do not include any additional text beyond the alternative itself.

Examples:
- If the relation type is "competes_with", the alternative could be "competes_against".
- If the relation type is "partners_with", the alternative could be "collaborates_with".
- If the relation type is "is_located_in", the alternative could be "is_based_in".

Relation Type: %s
Alternative:`, angle, req.CurrentValue)
}
