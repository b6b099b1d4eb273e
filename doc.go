// Package thickidx is an embedded object database with non-unique secondary
// indexes.
//
// Records are opaque byte payloads addressed by 32-bit OIDs. Named indexes
// map keys to any number of record OIDs. Each key keeps its values in a slot
// that starts as a small ordered list and turns into a compressed bitmap set
// once it grows past a threshold (128 by default).
//
// # Quick Start
//
// Local mode:
//
//	ctx := context.Background()
//	db, _ := thickidx.Open(ctx, thickidx.Local("./data"))
//	defer db.Close()
//
// Cloud mode:
//
//	s3Store, _ := s3.New(ctx, "my-bucket", s3.WithPrefix("objects/"))
//	db, _ := thickidx.Open(ctx, thickidx.Remote(s3Store), thickidx.WithCacheSize(256<<20))
//
// # Indexes
//
//	byTag, _ := db.CreateIndex(ctx, "by-tag", model.KindString)
//	oid, _ := db.Insert(ctx, []byte(`{"title":"hello"}`))
//	_ = byTag.Put(ctx, model.String("greeting"), oid)
//
//	for oid, err := range byTag.PrefixIter(ctx, "greet") {
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    payload, _ := db.Load(ctx, oid)
//	    fmt.Println(string(payload))
//	}
//
// Get returns the single value of a key and fails with ErrKeyNotUnique when
// the key holds more than one. Remove takes the value to remove because a
// key may hold many.
//
// Indexes only reference records: dropping or clearing an index never
// deletes a record, and deleting a record does not remove it from indexes.
//
// # Durability Model
//
// thickidx uses commit-oriented durability. Changes stay in memory until
// Commit writes every modified object as a checksummed, compressed page and
// switches a versioned manifest:
//
//	byTag.Put(ctx, key, oid)  // in memory
//	db.Commit(ctx)            // durable after this
package thickidx
