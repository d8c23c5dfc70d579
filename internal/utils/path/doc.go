// Package pathutils resolves user supplied filesystem paths.
package pathutils
