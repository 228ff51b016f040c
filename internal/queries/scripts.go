package queries

// Benchmarked traversals, as Gremlin-Groovy scripts with bindings.
const (
	siblingAttrsScript = `g.V(transient_id).choose(
  __.in('has_identity'),
  __.in('has_identity').
    project('identity_group_id', 'persistent_id', 'attributes', 'ip_location', 'iab_categories').
      by(__.in('member').values('igid')).
      by(__.values('pid')).
      by(__.out('has_identity').valueMap().unfold().group().by(keys).by(__.select(values).unfold().dedup().fold())).
      by(__.out('has_identity').out('uses').dedup().valueMap().fold()).
      by(__.out('has_identity').out('visited').in('links_to').values('categoryCode').dedup().fold()),
  __.project('identity_group_id', 'persistent_id', 'attributes', 'ip_location', 'iab_categories').
      by(__.constant('')).
      by(__.constant('')).
      by(__.valueMap().unfold().group().by(keys).by(__.select(values).unfold().dedup().fold())).
      by(__.out('uses').dedup().valueMap().fold()).
      by(__.out('visited').in('links_to').values('categoryCode').dedup().fold()))`

	undecidedUserCheckScript = `g.V(transient_id).hasLabel('transientId').
  in('has_identity').out('has_identity').
  outE('visited').has('ts', gt(since)).
  choose(__.has('visited_url', website_url), __.groupCount('visits').by(__.constant('page_visits'))).
  choose(__.has('visited_url', thank_you_page_url), __.groupCount('visits').by(__.constant('thank_you_page_vists'))).
  cap('visits').
  coalesce(
    __.and(
      __.coalesce(__.select('thank_you_page_vists'), __.constant(0)).is(0),
      __.select('page_visits').is(gt(min_visited_count))
    ).choose(__.count().is(1), __.constant(true)),
    __.constant(false))`

	undecidedUserAudienceScript = `g.V(website_url).hasLabel('website').
  inE('visited').has('ts', gt(since)).outV().
  in('has_identity').
  groupCount().unfold().dedup().
  where(__.select(values).is(gt(min_visited_count))).
  select(keys).as('pids').
  map(__.out('has_identity').outE('visited').
    has('visited_url', thank_you_page_url).has('ts', gt(since)).outV().
    in('has_identity').dedup().values('pid').fold()).as('pids_that_visited').
  select('pids').
  not(__.has('pid', where(within('pids_that_visited')))).
  out('has_identity').values('uid')`

	brandInteractionAudienceScript = `g.V(website_url).hasLabel('website').
  in('links_to').
  out('links_to').
  in('visited').
  in('has_identity').dedup().
  out('has_identity').values('uid')`

	householdTransientIDsScript = `g.V(transient_id).hasLabel('transientId').
  in('has_identity').
  in('member').has('type', 'household').
  out('member').
  out('has_identity').values('uid')`

	earlyWebsiteAdoptersScript = `g.V(thank_you_page_url).hasLabel('website').as('thank_you').
  in('links_to').as('website_group').
  select('thank_you').inE('visited').order().by('ts').
  choose(__.constant(skip_single_transients).is(eq(true)), __.where(__.outV().in('has_identity')), __.identity()).
  choose(
    __.outV().in('has_identity'),
    __.project('type', 'id', 'purchase_ts').by(__.constant('persistent')).by(__.outV().in('has_identity')).by(__.values('ts')),
    __.project('type', 'id', 'purchase_ts').by(__.constant('transient')).by(__.outV()).by(__.values('ts'))).
  dedup().by(__.select('id')).limit(adopters_limit).
  choose(
    __.select('type').is('persistent'),
    __.project('persistent_id', 'transient_id', 'purchase_ts').
      by(__.select('id').values('pid')).
      by(__.select('id').out('has_identity').fold()).
      by(__.select('purchase_ts')),
    __.project('persistent_id', 'transient_id', 'purchase_ts').
      by(__.constant('')).
      by(__.select('id').fold()).
      by(__.select('purchase_ts'))).
  project('persistent_id', 'purchase_ts', 'devices', 'visits').
    by(__.select('persistent_id')).
    by(__.select('purchase_ts')).
    by(__.select('transient_id').unfold().group().by(__.values('uid')).by(__.values('type'))).
    by(__.select('transient_id').unfold().outE('visited').order().by('ts').
      where(__.inV().in('links_to').where(eq('website_group'))).
      project('transientId', 'url', 'ts').by('uid').by('visited_url').by('ts').fold())`
)

// Argument discovery traversals.
const (
	householdMembersScript = `g.V().hasLabel('identityGroup').out('member').out('has_identity').
  coin(coin).limit(limit).id()`

	sampleWebsitesScript = `g.V().hasLabel('website').coin(coin).limit(limit).id()`

	userVisitPathsScript = `g.V().hasLabel('transientId').coin(coin).limit(limit).
  group().by().by(
    __.outE('visited').coin(coin).inV().in('links_to').out('links_to').coin(coin).
      path().by(__.values('uid')).by(__.values('ts')).by(__.values('url')).by(__.values('url')).by(__.values('url'))).
  select(values).unfold()`

	websiteVisitPathsScript = `g.V(websites).
  group().by().by(
    __.inE().hasLabel('visited').coin(coin).inV().in('links_to').out('links_to').coin(coin).
      path().by(__.values('url')).by(__.values('ts')).by(__.values('url')).by(__.values('url')).by(__.values('url').limit(1))).
  select(values).unfold()`

	mostActiveWebsitesScript = `g.V().hasLabel('website').
  order().by(__.inE('visited').count(), desc).
  limit(limit).id()`
)
