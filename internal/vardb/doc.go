// Package vardb reads the installed-package database.
//
// Each installed package owns a record directory <vdb>/<category>/<pf>/
// holding one file per metadata key (CATEGORY, PF, SLOT, USE, IUSE,
// RESTRICT, repository, CONTENTS, ...). The database is a live resource that
// other processes mutate: callers hold a per-package advisory lock (Lock) and
// must re-check Exists after acquiring it.
package vardb
