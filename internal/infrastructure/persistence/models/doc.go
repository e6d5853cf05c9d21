// Package models contains the GORM persistence models for the billing tables.
// Domain types stay free of ORM tags; the mappers here convert in both directions.
package models
