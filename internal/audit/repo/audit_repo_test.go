package repo

import (
	"reflect"
	"strings"
	"testing"
)

// The repo offers no way to change or remove an entry once written.
func TestAuditRepoIsAppendOnly(t *testing.T) {
	typ := reflect.TypeOf(&AuditRepo{})
	for i := 0; i < typ.NumMethod(); i++ {
		name := typ.Method(i).Name
		for _, verb := range []string{"Update", "Delete", "Remove", "Edit", "Set", "Purge"} {
			if strings.HasPrefix(name, verb) {
				t.Errorf("AuditRepo.%s mutates existing entries", name)
			}
		}
	}
}

func TestAuditRepoQueriesOnlyInsertAndSelect(t *testing.T) {
	for _, q := range []string{insertEntrySQL, countEntriesSQL, pageEntriesSQL} {
		upper := strings.ToUpper(q)
		if strings.Contains(upper, "UPDATE ") || strings.Contains(upper, "DELETE ") {
			t.Errorf("audit query modifies rows: %s", q)
		}
	}
}
