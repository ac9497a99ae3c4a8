package budget

import (
	"fmt"
	"strings"
	"time"

	"github.com/obradoria/budget-agent/internal/model"
)

// Prompt construction for the two LLM stages: parameter extraction and
// budget structure generation.

const extractionSystemPrompt = `You are an assistant specialized in extracting information from civil construction budget requests written in Brazilian Portuguese.
Identify:
- Number of units to build
- Building type (residencial, comercial, industrial)
- Construction standard (minimo/popular, basico/intermediario)
- Brazilian state (UF) where construction will happen
- Reference month and year for prices

Always answer with a valid JSON object containing the extracted fields.
When a field is unclear, use a sensible default.`

const structureSystemPrompt = `You are a civil engineering assistant that designs construction budget structures compatible with the SINAPI composition catalog (Brazilian national construction cost database).
Item names and descriptions must use SINAPI-style Portuguese nomenclature so they can be matched against the catalog.`

// ExtractionPrompt builds the prompt that turns free text into structured
// parameters.
func ExtractionPrompt(text string, now time.Time) string {
	current := model.CurrentPeriod(now)
	return fmt.Sprintf(`Extract the information from the text below and answer with ONLY a valid JSON object.

Text: %q

Fields to extract:
- quantity: integer number of units (default: 1)
- building_type: type of construction (e.g. "residencial")
- standard: construction standard (e.g. "minimo", "basico")
- state: Brazilian UF code or state name
- reference_month: month number 1-12 (default: %d)
- reference_year: four-digit year (default: %d)

Example answer:
{"quantity": 2, "building_type": "residencial", "standard": "minimo", "state": "MA", "reference_month": 9, "reference_year": 2025}

JSON:`, text, current.Month, current.Year)
}

// CorrectiveExtractionPrompt builds the single-retry prompt after a failed
// extraction, repeating the problems so the model can fix them.
func CorrectiveExtractionPrompt(text string, now time.Time, problems []string) string {
	return ExtractionPrompt(text, now) + fmt.Sprintf(`

Your previous answer had problems:
- %s

Answer again with ONLY a corrected JSON object.`, strings.Join(problems, "\n- "))
}

// estimatedAreas gives per-unit floor area ranges by residential subtype and
// standard, used to anchor quantity estimates in the generation prompt.
var estimatedAreas = map[string]map[string]string{
	"RESIDENCIAL_CASA":        {"MINIMO": "50-70m²", "BASICO": "80-120m²"},
	"RESIDENCIAL_APARTAMENTO": {"MINIMO": "40-50m²", "BASICO": "60-80m²"},
	"RESIDENCIAL_SOBRADO":     {"MINIMO": "80-100m²", "BASICO": "120-160m²"},
	"RESIDENCIAL_KITNET":      {"MINIMO": "20-25m²", "BASICO": "25-35m²"},
}

var buildingTypeLabels = map[string]string{
	"RESIDENCIAL_CASA":        "single-story house",
	"RESIDENCIAL_APARTAMENTO": "apartment",
	"RESIDENCIAL_SOBRADO":     "two-story house",
	"RESIDENCIAL_KITNET":      "studio apartment",
}

func estimatedArea(buildingType, standard string) string {
	if areas, ok := estimatedAreas[buildingType]; ok {
		if a, ok := areas[standard]; ok {
			return a
		}
	}
	if standard == "BASICO" {
		return "60-80m²"
	}
	return "40-50m²"
}

func buildingTypeLabel(buildingType string) string {
	if l, ok := buildingTypeLabels[buildingType]; ok {
		return l
	}
	return "residence"
}

// StructurePrompt builds the chain-of-thought prompt that generates a budget
// structure when no base budget exists for the requested standard.
func StructurePrompt(req model.BudgetRequest) string {
	label := buildingTypeLabel(req.BuildingType)
	area := estimatedArea(req.BuildingType, req.Standard)

	return fmt.Sprintf(`Task: generate a construction budget structure.

## Project
- Type: %s
- Standard: %s
- Units: %d
- Location: %s
- Estimated area per unit: %s

## Instructions (think step by step):

### Step 1: Identify the required construction stages
For a %s of %s standard, list the typical stages of the work.
Consider: preliminary services, infrastructure, superstructure, masonry, installations, finishes.

### Step 2: Define the service items of each stage
Think about the specific services that compose each stage.
Use SINAPI-compatible nomenclature in Portuguese.
Consider the %s standard for finish quality.

### Step 3: Define units of measure
Use standard units: M2 (area), M3 (volume), M (linear), UN (unit), KG (weight), H (hour).

### Step 4: Estimate quantities
Based on the %s area, estimate realistic quantities PER UNIT.
The system multiplies by the unit count (%d) afterwards.

### Step 5: Produce the final JSON

After reasoning, answer in this exact format:

<reasoning>
[Your step-by-step reasoning]
</reasoning>

<json>
{
  "stages": [
    {
      "name": "Stage name in Portuguese",
      "description": "Brief description",
      "items": [
        {
          "name": "Item name",
          "description": "Detailed SINAPI-compatible description in Portuguese",
          "unit": "M2",
          "quantity": 50.0
        }
      ]
    }
  ]
}
</json>

Generate a complete and realistic structure with at least 5 stages of 3-5 items each.`,
		label, req.Standard, req.Quantity, req.State, area,
		label, strings.ToLower(req.Standard), req.Standard, area, req.Quantity)
}

// SimpleStructurePrompt is the fallback prompt used on the retry when the
// chain-of-thought answer could not be parsed.
func SimpleStructurePrompt(req model.BudgetRequest) string {
	return fmt.Sprintf(`Generate a construction budget structure for:
- %dx %s, %s standard, in %s

Answer with a JSON object listing typical civil construction stages and items.
Use SINAPI-compatible nomenclature in Portuguese.

Format:
{
  "stages": [
    {
      "name": "...",
      "description": "...",
      "items": [
        {"name": "...", "description": "...", "unit": "M2", "quantity": 0.0}
      ]
    }
  ]
}`, req.Quantity, buildingTypeLabel(req.BuildingType), req.Standard, req.State)
}
