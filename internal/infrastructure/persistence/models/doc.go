// Package models holds the GORM persistence models. Each model maps to one
// table created by the SQL migrations and converts to and from its domain
// type via ToDomain and FromDomain.
package models
