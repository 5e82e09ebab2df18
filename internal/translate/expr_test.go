package translate

import (
	"testing"
)

func TestTranslate_CaseExpression(t *testing.T) {
	tr := New(false)

	got := tr.rewriteConstructs("CASE WHEN a=1 THEN x WHEN b=2 THEN y ELSE z END")
	want := "if(a=1,x,b=2,y,z)"
	if got != want {
		t.Errorf("rewriteConstructs = %q, want %q", got, want)
	}

	full := tr.Translate("CASE WHEN a=1 THEN x WHEN b=2 THEN y ELSE z END")
	wantFull := "if([a]=1,[x],[b]=2,[y],[z])"
	if full != wantFull {
		t.Errorf("Translate = %q, want %q", full, wantFull)
	}
}

func TestTranslate_CaseWithoutElse(t *testing.T) {
	tr := New(false)
	got := tr.rewriteConstructs("case when done then 1 end")
	want := "if(done,1)"
	if got != want {
		t.Errorf("rewriteConstructs = %q, want %q", got, want)
	}
}

func TestTranslate_NestedCase(t *testing.T) {
	tr := New(false)
	got := tr.rewriteConstructs("CASE WHEN a THEN CASE WHEN b THEN c END ELSE d END")
	want := "if(a,if(b,c),d)"
	if got != want {
		t.Errorf("rewriteConstructs = %q, want %q", got, want)
	}
}

func TestTranslate_MalformedCaseLeftAlone(t *testing.T) {
	tr := New(false)

	// No terminating keyword.
	got := tr.Translate("CASE WHEN a THEN b")
	want := "CASE WHEN [a] THEN [b]"
	if got != want {
		t.Errorf("Translate = %q, want %q", got, want)
	}

	// Zero WHEN clauses.
	got = tr.Translate("CASE ELSE b END")
	want = "CASE ELSE [b] END"
	if got != want {
		t.Errorf("Translate = %q, want %q", got, want)
	}
}

func TestTranslate_Concat(t *testing.T) {
	tr := New(false)

	got := tr.Translate("CONCAT(col1, ' - ', col2)")
	want := "[col1] & ' - ' & [col2]"
	if got != want {
		t.Errorf("Translate = %q, want %q", got, want)
	}
}

func TestTranslate_NestedConcat(t *testing.T) {
	tr := New(false)

	// The outer call's closing paren must be found past the nested call.
	got := tr.Translate("CONCAT(col1, CONCAT(col2, col3))")
	want := "[col1] & [col2] & [col3]"
	if got != want {
		t.Errorf("Translate = %q, want %q", got, want)
	}
}

func TestTranslate_SplitPart(t *testing.T) {
	tr := New(false)

	got := tr.Translate("SPLIT_PART(email, '@', 2)")
	want := "splitpart([email],'@',2)"
	if got != want {
		t.Errorf("Translate = %q, want %q", got, want)
	}
}

func TestTranslate_SplitPartWrongArity(t *testing.T) {
	tr := New(false)

	// Two arguments is not a valid substring extraction; the construct is
	// rejected and only bracketing applies.
	got := tr.Translate("SPLIT_PART(email, '@')")
	want := "SPLIT_PART([email], '@')"
	if got != want {
		t.Errorf("Translate = %q, want %q", got, want)
	}
}

func TestTranslate_Idempotent(t *testing.T) {
	tr := New(false)

	inputs := []string{
		"CASE WHEN a=1 THEN x ELSE z END",
		"CONCAT(col1, ' - ', col2)",
		"SPLIT_PART(email, '@', 2)",
		"plain_column",
		"[already_bracketed]",
		"'just a literal'",
		"amount * 2",
		"CASE WHEN a THEN b", // malformed survives unchanged
	}

	for _, input := range inputs {
		once := tr.Translate(input)
		twice := tr.Translate(once)
		if once != twice {
			t.Errorf("Translate not idempotent for %q: first %q, second %q", input, once, twice)
		}
	}
}

func TestTranslate_NeverDoubleBrackets(t *testing.T) {
	tr := New(false)

	got := tr.Translate("[col]")
	if got != "[col]" {
		t.Errorf("Translate([col]) = %q, want [col]", got)
	}
}

func TestTranslate_QuotedLiteralsUntouched(t *testing.T) {
	tr := New(false)

	got := tr.Translate("status = 'open_item'")
	want := "[status] = 'open_item'"
	if got != want {
		t.Errorf("Translate = %q, want %q", got, want)
	}
}

func TestTranslate_DisplayNames(t *testing.T) {
	tr := New(true)

	got := tr.Translate("order_status")
	want := "[order status]"
	if got != want {
		t.Errorf("Translate = %q, want %q", got, want)
	}
}

func TestTranslate_NumbersNotBracketed(t *testing.T) {
	tr := New(false)

	got := tr.Translate("amount * 100")
	want := "[amount] * 100"
	if got != want {
		t.Errorf("Translate = %q, want %q", got, want)
	}
}

func TestTranslate_ConcatInsideCase(t *testing.T) {
	tr := New(false)

	got := tr.Translate("CASE WHEN a THEN CONCAT(b, c) ELSE d END")
	want := "if([a],[b] & [c],[d])"
	if got != want {
		t.Errorf("Translate = %q, want %q", got, want)
	}
}
