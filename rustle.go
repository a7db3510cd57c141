// Package rustle is the core engine for AI-assisted web page translation.
//
// A build-time extractor (extract package, driven by cmd/rustle-extract) scans
// source markup for translatable text, assigns each fragment a stable
// content-based fingerprint, and maintains a versioned master record plus
// per-locale translation files. At runtime a Resolver answers per-fragment
// translation requests through an ordered waterfall: static locale data, then
// the persistent cache, then the offline queue, then a batched live API call
// with retry. Concurrent requests for the same text are deduplicated so at
// most one live call is in flight per (text, source, target).
//
// Basic runtime usage:
//
//	import (
//	    "context"
//	    "github.com/rustledotdev/rustle"
//	    "github.com/rustledotdev/rustle/api"
//	    "github.com/rustledotdev/rustle/cache"
//	)
//
//	func main() {
//	    client, err := api.NewClient(api.Config{
//	        APIKey:  os.Getenv("RUSTLE_API_KEY"),
//	        BaseURL: "https://api.rustle.dev",
//	    })
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//
//	    r := rustle.NewResolver(client,
//	        rustle.WithCache(cache.NewStore(cache.NewMemoryAdapter())),
//	    )
//
//	    text, err := r.Resolve(context.Background(), "Welcome", "es")
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    fmt.Println(text) // Bienvenido
//	}
package rustle
