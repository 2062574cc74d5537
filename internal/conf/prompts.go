package conf

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Prompts contains the classifier prompts loaded from YAML
type Prompts struct {
	Trigger string `yaml:"trigger"`
	Summary string `yaml:"summary"`
}

// LoadPrompts loads prompts from a YAML file, falling back to the built-in
// defaults for anything missing
func LoadPrompts(configPath string) (*Prompts, error) {
	paths := []string{configPath}
	if configPath == "" {
		paths = []string{
			"configs/prompts.yaml",
			"./configs/prompts.yaml",
			"/etc/clientwatch/prompts.yaml",
		}
		if execPath, err := os.Executable(); err == nil {
			paths = append(paths, filepath.Join(filepath.Dir(execPath), "configs", "prompts.yaml"))
		}
	}

	var data []byte
	for _, p := range paths {
		if p == "" {
			continue
		}
		if b, err := os.ReadFile(p); err == nil {
			data = b
			break
		}
	}

	if data == nil {
		return DefaultPrompts(), nil
	}

	var prompts Prompts
	if err := yaml.Unmarshal(data, &prompts); err != nil {
		return nil, fmt.Errorf("failed to parse prompts.yaml: %w", err)
	}
	prompts.fillDefaults()
	return &prompts, nil
}

func (p *Prompts) fillDefaults() {
	defaults := DefaultPrompts()
	if p.Trigger == "" {
		p.Trigger = defaults.Trigger
	}
	if p.Summary == "" {
		p.Summary = defaults.Summary
	}
}

// DefaultPrompts returns the built-in prompt set
func DefaultPrompts() *Prompts {
	return &Prompts{
		Trigger: `You are monitoring a client communication channel.
Analyze the conversation and identify three things from messages sent by the **Client** only:
1. **Client Fire**: Is the Client expressing urgent, negative sentiment?
2. **Testimonial**: Is the Client expressing strong positive sentiment or reporting meaningful wins, milestones, or results? This includes praise or mentions of signing a client, landing a deal, closing a retainer, etc.
3. **Client Questions**: List any explicit questions the Client has asked that have not yet been answered by the team.

**IMPORTANT**: Only analyze messages where the role is "Client". Ignore fires, testimonials, and questions from the "Team".

Here is an example:
---
**Input Dialogue:**
Client (id: m101): This is unacceptable, the system is down again!
Team (id: m102): I'm so sorry, looking into this now. What seems to be the issue from your end?
Client (id: m103): Also, I wanted to say that the new update is fantastic! Really great work.
Client (id: m104): Can you tell me when the fix will be deployed?
---
**Expected JSON Output:**
{
  "is_fire": true,
  "fire_text": "This is unacceptable, the system is down again!",
  "is_testimonial": true,
  "testimonial_text": "Also, I wanted to say that the new update is fantastic! Really great work.",
  "is_question": true,
  "questions": [
    { "text": "Can you tell me when the fix will be deployed?", "message_id": "m104" }
  ]
}
---

Respond ONLY with a valid JSON object in the format shown in the example. For each question, find the corresponding message in the dialogue and copy its 'id' value into the 'message_id' field.`,

		Summary: `You are summarizing a day of conversations between a client and a support team.
Based on the provided dialogue, generate a concise summary in markdown format with the following sections:
- **Key Concerns Raised**: Any problems or issues the client brought up.
- **Praise & Positive Feedback**: Any compliments or positive remarks from the client.
- **Unresolved Issues**: Any open questions or problems that were not resolved by the end of the day.
- **Key Action Items**: Any clear next steps for the team.

If a section has no relevant information, omit it from the summary. Output the summary directly with no preamble.`,
	}
}
