// Package enrich looks up the owner of a deal's property by its full address.
package enrich
