// Package services contains the business logic layer between the HTTP
// transport and the license engine. Services translate engine state
// into API response shapes and own no protocol details themselves.
package services
