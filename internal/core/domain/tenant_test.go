package domain

import (
	"strings"
	"testing"
)

func TestTenantSlug(t *testing.T) {
	cases := map[string]string{
		"Acme Corp":          "acme-corp",
		"  Acme   Corp  ":    "acme-corp",
		"acme\tcorp\nltd":    "acme-corp-ltd",
		"65f1c0de9a":         "65f1c0de9a",
		"Ünïcode/Tenant#1":   "_n_code_tenant_1",
		"already-slugged_id": "already-slugged_id",
	}
	for in, want := range cases {
		if got := TenantSlug(in); got != want {
			t.Fatalf("TenantSlug(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCollectionNameUsesPrefixSlugAndHash(t *testing.T) {
	got := CollectionName("tenant_", "Acme Corp")
	if !strings.HasPrefix(got, "tenant_acme-corp-") || len(got) != len("tenant_acme-corp-")+collectionHashLen {
		t.Fatalf("unexpected collection name %q", got)
	}
	if again := CollectionName("tenant_", "  Acme Corp "); again != got {
		t.Fatalf("surrounding whitespace must not change the collection: %q vs %q", again, got)
	}
}

func TestCollectionNameSeparatesIdsWithSameSlug(t *testing.T) {
	ids := []string{"acme corp", "ACME-corp", "Acme Corp", "acme\tcorp"}
	seen := map[string]string{}
	for _, id := range ids {
		name := CollectionName("tenant_", id)
		if prev, dup := seen[name]; dup {
			t.Fatalf("tenants %q and %q share collection %q", prev, id, name)
		}
		seen[name] = id
	}
}

func TestSourceTypeFromMime(t *testing.T) {
	if st, ok := SourceTypeFromMime("application/pdf"); !ok || st != SourcePDF {
		t.Fatalf("expected pdf, got %q ok=%v", st, ok)
	}
	if st, ok := SourceTypeFromMime("text/plain; charset=utf-8"); !ok || st != SourceTXT {
		t.Fatalf("expected txt, got %q ok=%v", st, ok)
	}
	if _, ok := SourceTypeFromMime("image/png"); ok {
		t.Fatalf("expected image/png to be rejected")
	}
}
