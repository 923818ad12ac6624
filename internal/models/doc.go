// package models defines the data model for the listening stats web service
package models
