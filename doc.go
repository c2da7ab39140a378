// Package savex stores typed Go values under string keys inside a single
// container, optionally compressed and encrypted, on disk, in a platform
// key-value store or in an in-memory cache that can be promoted to disk.
//
// # Quick Start
//
//	engine, err := savex.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	cfg, _ := engine.Config("saves/slot1.pak",
//	    savex.WithCompression(savex.CompressionGzip),
//	    savex.WithEncryption("correct horse"),
//	)
//
//	if err := engine.Save(ctx, "player", player, cfg); err != nil {
//	    log.Fatal(err)
//	}
//	loaded, err := savex.Load[Player](ctx, engine, "player", cfg)
//
// # Locations
//
//   - File: one file per container, replaced atomically on every save
//   - KeyValue: one value per container in a KeyValueStore (SQLite, S3, memory)
//   - Cache: containers held in memory until StoreCachedFile
//   - Memory: no containers; use Serialize and Deserialize
//
// # Struct Tags
//
// Exported fields are stored by default. The archive tag adjusts that:
//   - archive:"include" always stores the field
//   - archive:"-" never stores it
//   - archive:",serialize" stores an unexported field in safe mode
//   - archive:",readonly", archive:",deprecated" and archive:",transient" skip it
//
// Getter and setter pairs such as Score() and SetScore(int) are stored as
// properties when the type lists them in an ArchiveProperties() []string
// method, or always when safe reflection is off.
//
// # Errors
//
// Errors form a hierarchy matched with errors.Is: ErrNotFound,
// ErrLocationMismatch, ErrUnsupportedOperation, ErrFormat, ErrTransform and
// ErrDeserialization are the categories. LoadOr never turns a transform or
// decoding error into its default value.
//
// # Providers
//
// Storage and password backends live in sub-packages:
//   - providers/kv/sqlite and providers/kv/s3 implement KeyValueStore
//   - providers/secrets/hashicorp (Vault KV v2) and providers/secrets/awskms
//     (KMS-sealed passwords) implement PasswordSource
package savex
