/*
Package mappingfile implements the store of the hostname to file
mapping, loaded from a JSON file, and the watcher that reloads it when
the file changes.

The file contains a single JSON object, whose keys are the hostnames
and whose values are the file paths, relative to the static root:

	{
		"example.org": "sites/example/index.html",
		"docs.example.org": "sites/docs/index.html"
	}

Entries with an empty or null value are ignored. The mapping is always
replaced as a whole: readers get either the previous or the new
mapping, never a partially updated one. When loading the file fails,
the previous mapping stays in effect.
*/
package mappingfile
