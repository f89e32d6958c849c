// Package crawler implements the depth-bounded, de-duplicated recursive crawl
// and the batch orchestration that merges rendered pages and PDFs into one
// bounded text corpus for summarization.
package crawler
