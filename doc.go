// Package chatshard stores conversation transcripts on local disk.
//
// A conversation is an ordered list of JSON message records plus one header
// record. Small or old conversations live in a single JSONL file; once the
// chunked layout is enabled they are split into fixed-size shard files with
// an index sidecar so that appending a message or paging backward touches
// only the shards involved.
//
// Store is the entry point. It resolves owner/name pairs to files, enforces
// integrity tags, keeps a summary cache and runs post-save side effects:
//
//	cfg, err := config.Load("")
//	store, err := chatshard.NewStore(cfg)
//	defer store.Close()
//
//	res, err := store.Save(chatshard.SaveRequest{
//		Owner:    "alice",
//		Name:     "Seraphina.jsonl",
//		Header:   core.NewHeader("Alice", "Seraphina"),
//		Messages: messages,
//	})
package chatshard
