package mcpserver

// CollectionPolicy describes what blog content LLM consumers may read
// through this server and how it may be used.
const CollectionPolicy = `# KeepGoing Collection Policy

This server exposes a personal blog to LLM consumers. Access is opt-in
per post.

## What is collectable

1. **Only posts marked AI-collectable.** The author flags each post
   individually. Posts without the flag, including public ones, are not
   reachable through any tool and report not found.
2. **Tags are public metadata.** The full tag list is available so that
   searches can be scoped, even when no collectable post carries a tag.
3. **Categories, drafts, and private posts are never exposed.**

## Usage rules

1. Attribute quoted content to the blog when reproducing it.
2. Do not attempt to enumerate post ids to discover non-collectable
   content; ids are opaque and non-sequential.
3. Treat the content as the author's current draft of record. Posts can
   be edited or withdrawn at any time, so re-fetch rather than caching
   long-term.
4. ` + "`" + `search_posts` + "`" + ` matches titles and bodies case-insensitively and
   returns at most 50 results; refine the query instead of paging.

## Tools

- ` + "`" + `search_posts` + "`" + ` - search collectable posts by text, optionally
  scoped to one tag id.
- ` + "`" + `read_post` + "`" + ` - fetch the full Markdown body of one collectable post.
- ` + "`" + `list_tags` + "`" + ` - list tag ids and names.
- ` + "`" + `get_collection_policy` + "`" + ` - this document.
`
