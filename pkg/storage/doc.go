// Package storage maps remote video metadata to local files.
//
// SanitizeTitle turns an untrusted caption into a bounded, filesystem-safe
// base name. Manager owns the destination directory: it falls back to a
// secondary directory when the primary is not writable, decides the final
// path for each title according to the collision policy, and writes
// downloads through a ".part" file that is renamed into place on success.
//
//	m, err := storage.NewManager(storage.Options{
//	    Dir:         "./downloads",
//	    FallbackDir: "/tmp/dycrawler",
//	    Extension:   "mp4",
//	    Policy:      storage.PolicySuffix,
//	})
//	path := m.Reserve(storage.SanitizeTitle(caption, videoID))
//	f, err := m.Create(path)
//	...
//	err = f.Commit()
//
// A download that is cancelled calls Abandon, which leaves the ".part" file
// where it is. Those leftovers are not cleaned up automatically.
package storage
