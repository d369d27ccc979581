// Package core provides the record management logic behind the admin panel.
//
// It binds each registered collection to a [grid.Controller] and a
// [store.Store], and is independent of any transport: web handlers, the CLI
// and tests all drive it the same way.
//
// # Architecture
//
//   - Collection Definitions: registered at init via [Register]. Each carries
//     the grid columns, field validation rules, export fields and the
//     built-in fallback records shown when the store is empty.
//   - Manager: one per collection. Owns the record cache and the table state,
//     performs CRUD against the store and refreshes the controller.
//   - Service: owns the store, every manager and the audit log.
//   - Audit: every mutation is recorded in the store under [AuditCollection].
//
// # Collection Registry
//
//	core.Register(core.CollectionDefinition{
//	    Info: core.CollectionInfo{Key: "skills", Label: "Skills", TitleField: "name"},
//	    Columns: grid.Columns{
//	        {Key: "name", Header: "Name", Type: grid.ColumnText, Searchable: true, Sortable: true},
//	    },
//	    FieldSpecs: []core.FieldSpec{
//	        {Name: "name", Type: core.FieldText, Required: true},
//	    },
//	})
//
// # Fallback Records
//
// Records built into the binary carry [grid.OriginLocalFallback]. They are
// listed like any other record but every mutation on them fails with
// [ErrFallbackRecord]; the check reads the typed origin, never the id.
//
// # Error Handling
//
// [MapError] converts technical errors to [UserMessage] values with a code
// support staff can look up. Callback errors from bulk actions reach the
// caller unchanged, so errors.Is works on store sentinels.
package core
