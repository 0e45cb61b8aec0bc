// Package config persists MGit's user configuration.
//
// Configuration lives in a single JSON file, ~/.mgit/config.json by
// default. The file is read once at startup and every mutation is a
// read-modify-write of the in-memory document followed by an atomic
// rewrite to disk, so the on-disk file is always a complete document.
//
// Layout:
//
//	{
//	  "theme": "dark",
//	  "recent_repositories": ["/home/me/notes"],
//	  "plugins": {
//	    "word-count": {
//	      "enabled": true,
//	      "settings": {"update_interval": 2}
//	    }
//	  }
//	}
//
// Keys under "plugins" are plugin identifiers; a plugin absent from the
// file is considered enabled with no stored settings.
package config
