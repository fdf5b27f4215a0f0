package guidance

import "strings"

// Guide is a first-aid reference entry.
type Guide struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Section  string   `json:"section"`
	Steps    []string `json:"steps"`
	Warnings []string `json:"warnings,omitempty"`
}

var library = []Guide{
	{
		ID:      "bleeding",
		Title:   "Stopping Bleeding",
		Section: "common",
		Steps: []string{
			"Apply direct pressure to the wound using a clean cloth or bandage",
			"If possible, raise the injured area above the level of the heart",
			"Apply pressure for at least 15 minutes",
			"If bleeding continues, apply pressure to the artery supplying the area",
			"Secure the dressing with a bandage once bleeding slows",
			"Seek medical attention immediately for severe bleeding",
		},
		Warnings: []string{
			"Do not remove the cloth if it becomes soaked with blood - add another on top",
			"Do not apply a tourniquet unless specifically trained to do so",
		},
	},
	{
		ID:      "burns",
		Title:   "Treating Burns",
		Section: "common",
		Steps: []string{
			"Remove the person from the source of the burn",
			"Cool the burn with cool (not cold) running water for 10-15 minutes",
			"Remove jewelry or tight items near the burned area",
			"Cover the burn with a sterile, non-adhesive bandage or clean cloth",
			"Do not apply ointments, butter, or other home remedies to serious burns",
			"Take over-the-counter pain relievers if needed",
		},
		Warnings: []string{
			"Never use ice, as it can cause further damage",
			"Do not break blisters",
			"Seek immediate medical attention for severe or extensive burns",
		},
	},
	{
		ID:      "cpr",
		Title:   "CPR Basics",
		Section: "critical",
		Steps: []string{
			"Check if the person is responsive by tapping their shoulder and shouting",
			"If unresponsive, call emergency services or ask someone else to",
			"Place the person on their back on a firm surface",
			"Kneel beside the person's chest",
			"Place the heel of one hand on the center of the chest, then place your other hand on top",
			"Keep your arms straight and position your shoulders directly above your hands",
			"Push hard and fast at a rate of 100-120 compressions per minute",
			"Allow the chest to completely recoil between compressions",
			"Continue until emergency services arrive or the person shows signs of life",
		},
		Warnings: []string{
			"Do not perform CPR if the person is conscious or breathing normally",
			"If you haven't been trained in CPR, use hands-only CPR (compressions only)",
		},
	},
	{
		ID:      "choking",
		Title:   "Choking Relief",
		Section: "critical",
		Steps: []string{
			"Stand behind the person and slightly to one side",
			"Support their chest with one hand and lean them forward",
			"Give up to 5 sharp blows between their shoulder blades with the heel of your hand",
			"Check if the blockage has cleared after each blow",
			"If back blows don't help, try abdominal thrusts (Heimlich maneuver)",
			"Stand behind the person and put both arms around their upper abdomen",
			"Clench your fist and place it between the navel and the bottom of their sternum",
			"Grasp this hand with your other hand and pull sharply inward and upward",
			"Repeat up to 5 times",
		},
		Warnings: []string{
			"For pregnant women or obese individuals, perform chest thrusts instead of abdominal thrusts",
			"If the person becomes unconscious, begin CPR immediately",
		},
	},
	{
		ID:      "fracture",
		Title:   "Handling Fractures",
		Section: "injuries",
		Steps: []string{
			"Keep the injured area still and supported until help arrives",
			"If needed, immobilize the area using a splint",
			"Apply ice packs wrapped in a cloth to reduce swelling",
			"Elevate the injured limb if possible",
			"Take pain relievers if needed",
			"Seek medical attention immediately",
		},
		Warnings: []string{
			"Do not attempt to straighten a broken bone",
			"Do not move a person with a suspected spinal, neck, or head injury unless absolutely necessary",
		},
	},
	{
		ID:      "snake-bite",
		Title:   "Snake Bite",
		Section: "bites",
		Steps: []string{
			"Move the person away from the snake",
			"Keep the bitten area below the level of the heart",
			"Keep the person calm and still to slow the spread of venom",
			"Remove any jewelry or tight clothing near the bite",
			"Clean the wound gently with soap and water if available",
			"Cover the bite with a clean, dry dressing",
			"Mark the leading edge of swelling on the skin and note the time",
			"Get medical help immediately",
		},
		Warnings: []string{
			"Do NOT cut the bite or attempt to suck out the venom",
			"Do NOT apply a tourniquet or ice",
			"Do NOT give the person alcohol or medications",
		},
	},
}

// Guides returns a copy of the whole first-aid library.
func Guides() []Guide {
	out := make([]Guide, len(library))
	for i, g := range library {
		out[i] = g.clone()
	}
	return out
}

// GuideByID looks up a single guide by ID.
func GuideByID(id string) (Guide, bool) {
	for _, g := range library {
		if g.ID == id {
			return g.clone(), true
		}
	}
	return Guide{}, false
}

// Search returns guides whose title or section contains query,
// case-insensitively. An empty query returns every guide.
func Search(query string) []Guide {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return Guides()
	}
	var out []Guide
	for _, g := range library {
		if strings.Contains(strings.ToLower(g.Title), q) || strings.Contains(g.Section, q) {
			out = append(out, g.clone())
		}
	}
	return out
}

func (g Guide) clone() Guide {
	g.Steps = append([]string(nil), g.Steps...)
	g.Warnings = append([]string(nil), g.Warnings...)
	return g
}
