package pipeline

import "testing"

const origChunk = "## One marker:5\ntext\n## Two\ntext\n## Three\ntext\n"

func TestValidate_Accepts(t *testing.T) {
	candidate := "## One marker:5\ntext\n## Two marker:70\ntext\n## Three marker:140\ntext\n"
	v := Validate(candidate, origChunk, true, "vid42")
	if !v.Accepted {
		t.Fatalf("rejected: %s", v.Reason)
	}
}

func TestValidate_RejectsEmpty(t *testing.T) {
	if v := Validate("   ", origChunk, true, "vid42"); v.Accepted {
		t.Error("empty candidate accepted")
	}
}

func TestValidate_RejectsDroppedHeadings(t *testing.T) {
	candidate := "## One marker:5\ntext\n## Two marker:70\ntext\n"
	v := Validate(candidate, origChunk, true, "vid42")
	if v.Accepted {
		t.Fatal("candidate with 2 of 3 headings accepted")
	}
	if v.Reason != "headings dropped" {
		t.Errorf("reason = %q", v.Reason)
	}
}

func TestValidate_AllowsExtraHeadings(t *testing.T) {
	candidate := origChunk + "## Four marker:200\n"
	if v := Validate(candidate, origChunk, true, "vid42"); !v.Accepted {
		t.Errorf("extra headings should pass: %s", v.Reason)
	}
}

func TestValidate_RequiresTimestampRefWhenLinking(t *testing.T) {
	candidate := "## One\ntext\n## Two\ntext\n## Three\ntext\n"
	if v := Validate(candidate, candidate, true, "vid42"); v.Accepted {
		t.Error("linking pass without any marker or link accepted")
	}
	// A rendered link naming the video also satisfies the check.
	linked := "## One [00:00:05](https://www.youtube.com/watch?v=vid42&t=5s)\n## Two\n## Three\n"
	if v := Validate(linked, candidate, true, "vid42"); !v.Accepted {
		t.Errorf("rendered link should pass: %s", v.Reason)
	}
}

func TestValidate_NoLinkCheckWhenNotRequested(t *testing.T) {
	candidate := "## One\ntext\n"
	if v := Validate(candidate, "## A\nx\n", false, "vid42"); !v.Accepted {
		t.Errorf("non-linking pass should not require markers: %s", v.Reason)
	}
}

func TestValidate_RejectsEchoedReference(t *testing.T) {
	candidate := origChunk + "\n" + ReferenceDelimiter + "\nleaked transcript marker:1\n"
	if v := Validate(candidate, origChunk, true, "vid42"); v.Accepted {
		t.Error("echoed reference delimiter accepted")
	}
}
