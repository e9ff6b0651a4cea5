// Package extractors converts raw file bytes into canonical UTF-8
// text. Each subpackage handles one MIME family; the registry
// dispatches on the family tag and enforces the size limit before any
// extraction begins.
package extractors
