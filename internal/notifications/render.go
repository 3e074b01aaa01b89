package notifications

import (
	"fmt"
	"strings"
)

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

func (p Payload) str(key string) string {
	if p == nil {
		return ""
	}
	switch v := p[key].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case fmt.Stringer:
		return strings.TrimSpace(v.String())
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

func (p Payload) label() string {
	parts := make([]string, 0, 3)
	for _, key := range []string{KeyOwner, KeyProject, KeyDataset} {
		if v := p.str(key); v != "" {
			parts = append(parts, v)
		}
	}
	if len(parts) == 0 {
		return "unknown dataset"
	}
	return strings.Join(parts, " ")
}

func withReason(base string, p Payload) string {
	if reason := p.str(KeyReason); reason != "" {
		return base + ": " + reason
	}
	return base
}

// render turns an event into message text. It reports false for events that
// have no rendering.
func render(event Event, p Payload) (message, bool) {
	label := p.label()
	switch event {
	case EventImagingStarted:
		return message{title: "Imaging started", body: fmt.Sprintf("Imaging of %s started", label), tags: []string{"imaging", "started"}}, true
	case EventImagingFinished:
		return message{title: "Imaging finished", body: fmt.Sprintf("Imaging of %s finished", label), tags: []string{"imaging", "finished"}}, true
	case EventImagingPaused:
		body := fmt.Sprintf("WARNING: Imaging of %s paused", label)
		if layer := p.str(KeyLayer); layer != "" {
			body += " at layer " + layer
		}
		return message{title: "Imaging paused", body: withReason(body, p), tags: []string{"imaging", "paused"}, priority: "high"}, true
	case EventImagingResumed:
		return message{title: "Imaging resumed", body: fmt.Sprintf("Imaging of %s resumed", label), tags: []string{"imaging", "resumed"}}, true
	case EventProcessingStarted:
		return message{title: "Processing started", body: fmt.Sprintf("Processing of %s started", label), tags: []string{"processing", "started"}}, true
	case EventStitchingError:
		return message{title: "Stitching error", body: fmt.Sprintf("WARNING: Stitching error for %s. Ticket is in the error folder.", label), tags: []string{"stitch", "error"}, priority: "high"}, true
	case EventStageStalled:
		stage := stageTag(p)
		return message{title: "Stage stalled", body: withReason(fmt.Sprintf("WARNING: %s of %s could be stuck", stageLabel(stage), label), p), tags: []string{stage, "stalled"}, priority: "high"}, true
	case EventStageResumed:
		stage := stageTag(p)
		return message{title: "Stage resumed", body: fmt.Sprintf("%s of %s resumed", stageLabel(stage), label), tags: []string{stage, "resumed"}}, true
	case EventBrokenArtifact:
		body := fmt.Sprintf("WARNING: Broken artifact for %s", label)
		if path := p.str(KeyPath); path != "" {
			body += " at " + path
		}
		return message{title: "Broken artifact", body: withReason(body, p), tags: []string{"artifact", "broken"}, priority: "high"}, true
	case EventProtocolViolation:
		return message{title: "Needs review", body: withReason(fmt.Sprintf("WARNING: Ticket protocol violation for %s", label), p), tags: []string{"protocol", "review"}, priority: "high"}, true
	case EventVolumeBuilt:
		body := fmt.Sprintf("Volume built for %s", label)
		if path := p.str(KeyPath); path != "" {
			body += ". Check it out at " + path
		}
		return message{title: "Volume built", body: body, tags: []string{"volume", "built"}}, true
	case EventProcessingFinished:
		return message{title: "Processing finished", body: fmt.Sprintf("Processing of %s finished", label), tags: []string{"processing", "finished"}}, true
	case EventAnalysisQueued:
		return message{title: "Analysis queued", body: fmt.Sprintf("Created analysis task for %s", label), tags: []string{"analysis", "queued"}}, true
	case EventStorageWarning:
		resource := p.str(KeyResource)
		tier := p.str(KeyTier)
		body := fmt.Sprintf("WARNING: Low space on %s (%s used, limit %s)", resource, p.str(KeyUsed), p.str(KeyLimit))
		priority := "high"
		if tier == "critical" {
			body = fmt.Sprintf("WARNING: Critically low space on %s (%s used, limit %s)", resource, p.str(KeyUsed), p.str(KeyLimit))
			priority = "urgent"
		}
		return message{title: "Storage warning", body: body, tags: []string{"storage", tier}, priority: priority}, true
	case EventIgnoringDemoDataset:
		return message{title: "Dataset ignored", body: fmt.Sprintf("Ignoring demo dataset %s", label), tags: []string{"imaging", "ignored"}, priority: "low"}, true
	case EventTest:
		return message{title: "Test", body: "Notification system test", tags: []string{"test"}, priority: "low"}, true
	default:
		return message{}, false
	}
}

func stageLabel(stage string) string {
	switch stage {
	case "imaging":
		return "Imaging"
	case "stitch":
		return "Stitching"
	case "denoise":
		return "Denoising"
	case "build_volume":
		return "Volume build"
	case "processing":
		return "Processing"
	default:
		return stage
	}
}

func stageTag(p Payload) string {
	if stage := p.str(KeyStage); stage != "" {
		return stage
	}
	return "processing"
}
