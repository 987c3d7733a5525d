// Package persist keeps signal values across process restarts.
//
// A Store maps keys to JSON documents. MemoryStore and DiskStore cover tests
// and single machines; S3Store writes objects to a bucket.
//
//	store := persist.NewS3Store(client, "my-bucket", "prefs/")
//	theme := reactive.NewSignal(sc, "light")
//	if _, err := persist.Bind(sc, theme, store, "theme"); err != nil {
//	    return err
//	}
//	theme.Set("dark") // saved as prefs/theme.json
package persist
