// Package domain contains the core entities and business rules of the
// knowledge base: spaces, items, queries, and the validation and error
// taxonomy the pipeline is built on. It has no dependencies on
// infrastructure.
package domain
