// Package quarkdrive is a local content-addressed storage engine that
// deduplicates and compresses files and serves reads through a two-tier
// hybrid cache.
//
// Files ingested through the engine are identified by SHA256 digest; each
// unique byte sequence is compressed with zstd and stored exactly once. A
// durable catalog maps logical paths to blobs with reference counts. Reads
// go through a RAM LRU tier backed by a disk tier, with asynchronous
// write-back between them.
//
// Basic usage:
//
//	eng, err := quarkdrive.Open(
//		quarkdrive.WithDataRoot("./data"),
//		quarkdrive.WithCacheRoot("./cache_ssd"),
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer eng.Close()
//
//	dgst, err := eng.StoreFile("report.pdf")
//	...
//	err = eng.RetrieveFile("report.pdf", "restored.pdf")
//
// The vfs subpackage presents an engine as a flat filename namespace to an
// external mount driver.
package quarkdrive
