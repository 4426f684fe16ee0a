// Package store is a schema-aware persistence layer over a key-value store.
//
// A schema is a set of entities, each with typed fields carrying constraints
// (mandatory, unique, read-only, auto-generated), optional defaults, foreign
// keys with on-delete policies, a natural key and composite unique
// constraints. Entities enforce these constraints on top of any [kv.Store],
// which only offers point lookups, puts, deletes and filtered scans.
//
// # Defining a schema
//
// Schemas are built in two phases so entities may reference each other in any
// order. Entities and fields are defined first, then [Entities.Load] resolves
// foreign keys and reports every definition error at once:
//
//	es := store.NewEntities(memkv.New(), store.DefaultConfig())
//
//	type Team struct{ *store.Instance }
//	teams := store.Define(es, "team", func(i *store.Instance) Team { return Team{i} })
//	teamName := teams.AddField("name", store.String, store.Indexed(), store.Mandatory(), store.Unique())
//	teams.SetNaturalKey(teamName)
//
//	type Member struct{ *store.Instance }
//	members := store.Define(es, "member", func(i *store.Instance) Member { return Member{i} })
//	memberTeam := members.AddReference("team", "team", store.Cascade, store.Mandatory())
//
//	if err := es.Load(); err != nil {
//	    return err
//	}
//
// # Records
//
// Records are [Instance] values, usually embedded in a typed wrapper. Values
// set on a record are validated immediately and held as pending updates until
// the record is inserted, updated or saved:
//
//	t := teams.New()
//	if err := t.Set(teamName, "platform"); err != nil {
//	    return err
//	}
//	if err := teams.Insert(ctx, t); err != nil {
//	    return err
//	}
//
// Save upserts by natural key. Delete applies each foreign key's [OnDelete]
// policy to referencing records before removing the record itself.
//
// # Errors
//
// Constraint violations are [*ConstraintError] values wrapping one of
// [ErrMandatory], [ErrUnique], [ErrReadOnly] or [ErrAutoGenerated]. A delete
// blocked by a RESTRICT foreign key returns a [*ReferentialError] wrapping
// [ErrReferentialRestriction]. Misuse of the API returns [ErrIllegalUsage] or
// [ErrIllegalArgument], and broken invariants return [ErrIntegrity].
//
// # Limitations
//
// Uniqueness checks and cascades are not transactional. Concurrent writers can
// insert duplicate unique values, and a store failure in the middle of a
// cascade leaves earlier steps applied. Bulk deletes skip on-delete policies.
package store
