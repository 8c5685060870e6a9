// Command recomo prepares reconstructed scenes for reference videos and plays
// them back headlessly.
//
//	recomo scene fetch --source-key tmpl-1 --video https://host/ref.mp4
//	recomo scene play --source-key tmpl-1 --for 10s
//	recomo scene export --source-key tmpl-1 --out ./export
//	recomo cache list
//	recomo config init
package main
