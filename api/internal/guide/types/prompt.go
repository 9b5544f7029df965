package types

import "encoding/json"

// SystemInstruction is the fixed repair-technician persona sent with every request.
const SystemInstruction = `You are an expert repair technician and DIY specialist.
Your task is to analyze images of broken household items, electronics, or parts.
1. Identify the object, brand, and potential model.
2. Analyze the visible damage or describe the likely error based on visual cues.
3. Provide a structured, step-by-step repair guide.
4. Estimate difficulty, time, and tools needed.
5. Emphasize safety. If the repair involves electricity, sharp objects, or specific hazards, explicitly list them in safetyWarnings.

Return the response strictly as a valid JSON object matching the requested schema.`

// UserPrompt accompanies the inline image.
const UserPrompt = "Analyze this image. Identify the item, diagnose the issue, and provide a repair guide."

// Field descriptions shared by every engine's schema.
const (
	DescItemName        = "Name of the item identified"
	DescModelNumber     = "Specific model number if visible or inferred"
	DescDamageAnalysis  = "Description of the visual damage or diagnosis"
	DescDifficultyLevel = "Estimated difficulty level"
	DescToolsRequired   = "List of tools needed for the repair"
	DescEstimatedTime   = "Estimated time to complete repair (e.g. '30-45 mins')"
	DescSafetyWarnings  = "Critical safety warnings, especially involving electricity or sharp objects"
	DescRepairSteps     = "Ordered repair steps, numbered from 1"
)

// RequiredFields of the top-level guide object. modelNumber is the only optional one.
var RequiredFields = []string{
	"itemName", "damageAnalysis", "difficultyLevel", "toolsRequired",
	"estimatedTime", "repairSteps", "safetyWarnings",
}

// RequiredStepFields of every repairSteps item.
var RequiredStepFields = []string{"stepNumber", "action", "explanation"}

// StrictJSONSchema is the output contract as JSON Schema, for engines that take a raw schema
// (OpenAI json_schema response format) or read it from the prompt. Strict mode wants every
// property listed in required, so modelNumber is expressed as nullable instead.
var StrictJSONSchema = json.RawMessage(`{
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "itemName": {"type": "string", "description": "` + DescItemName + `"},
    "modelNumber": {"type": ["string", "null"], "description": "` + DescModelNumber + `"},
    "damageAnalysis": {"type": "string", "description": "` + DescDamageAnalysis + `"},
    "difficultyLevel": {"type": "string", "enum": ["Beginner", "Intermediate", "Advanced", "Expert"], "description": "` + DescDifficultyLevel + `"},
    "toolsRequired": {"type": "array", "items": {"type": "string"}, "description": "` + DescToolsRequired + `"},
    "estimatedTime": {"type": "string", "description": "` + DescEstimatedTime + `"},
    "safetyWarnings": {"type": "array", "items": {"type": "string"}, "description": "` + DescSafetyWarnings + `"},
    "repairSteps": {
      "type": "array",
      "description": "` + DescRepairSteps + `",
      "items": {
        "type": "object",
        "additionalProperties": false,
        "properties": {
          "stepNumber": {"type": "integer"},
          "action": {"type": "string"},
          "explanation": {"type": "string"}
        },
        "required": ["stepNumber", "action", "explanation"]
      }
    }
  },
  "required": ["itemName", "modelNumber", "damageAnalysis", "difficultyLevel", "toolsRequired", "estimatedTime", "safetyWarnings", "repairSteps"]
}`)
